package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/logging"
)

func createTestServer() *Server {
	cfg := &config.ServerConfig{Host: "127.0.0.1", Port: "0"}
	logger := logging.NewLogger("error", "json")
	return NewServer(cfg, nil, nil, nil, nil, nil, logger)
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %s, want ok", body["status"])
	}
}

func TestUpsertJobConfig_InvalidJSON(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/job_configs", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestUpsertJobConfig_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "missing token copy info",
			body: map[string]interface{}{
				"statInkApiKey": "key",
			},
		},
		{
			name: "missing api key",
			body: map[string]interface{}{
				"tokenCopyInfo": map[string]string{
					"redirectUrl":      "npf71b963c1b7b6d119://auth#code=abc",
					"authCodeVerifier": "verifier",
				},
			},
		},
		{
			name: "unknown listing query",
			body: map[string]interface{}{
				"tokenCopyInfo": map[string]string{
					"redirectUrl":      "npf71b963c1b7b6d119://auth#code=abc",
					"authCodeVerifier": "verifier",
				},
				"statInkApiKey":  "key",
				"enabledQueries": []string{"NoSuchQuery"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := createTestServer()
			body, _ := json.Marshal(tt.body)

			req := httptest.NewRequest(http.MethodPost, "/api/job_configs", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			server.Router().ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestDispatchWithoutDispatcher(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/dispatch", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/api/job_configs", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Expected CORS headers on preflight response")
	}
}
