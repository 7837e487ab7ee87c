package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/adapter"
	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/logging"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

func newTestManager(t *testing.T, graphQLHandler http.HandlerFunc) (*SessionManager, *config.PlatformConfig) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/graphql", graphQLHandler)
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := &config.PlatformConfig{
		SplatNet3URL:           srv.URL,
		GraphQLURL:             srv.URL + "/api/graphql",
		AuthorizeURL:           srv.URL + "/authorize",
		TokenURL:               srv.URL + "/token",
		FallbackWebViewVersion: "1.0.0-5644e7a2",
		FallbackNSOAppVersion:  "2.3.1",
		WebViewConfigTTL:       time.Minute,
	}
	nintendo := adapter.NewNintendoClient(cfg, nil)
	return NewSessionManager(nintendo, logging.NewLogger("error", "json")), cfg
}

func TestNewTokenCopyInfo(t *testing.T) {
	m, cfg := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {})

	info, err := m.NewTokenCopyInfo()
	if err != nil {
		t.Fatalf("NewTokenCopyInfo() error = %v", err)
	}

	if info.AuthCodeVerifier == "" {
		t.Error("AuthCodeVerifier should be set")
	}
	if !strings.HasPrefix(info.CopyRedirectionURL, cfg.AuthorizeURL) {
		t.Errorf("CopyRedirectionURL = %s, want prefix %s", info.CopyRedirectionURL, cfg.AuthorizeURL)
	}
	for _, param := range []string{"client_id=", "session_token_code_challenge=", "state="} {
		if !strings.Contains(info.CopyRedirectionURL, param) {
			t.Errorf("CopyRedirectionURL missing %s", param)
		}
	}

	// each call issues fresh PKCE material
	again, err := m.NewTokenCopyInfo()
	if err != nil {
		t.Fatalf("NewTokenCopyInfo() error = %v", err)
	}
	if again.AuthCodeVerifier == info.AuthCodeVerifier {
		t.Error("verifier should differ between calls")
	}
}

func TestPreCheckReady(t *testing.T) {
	var gotAuth, gotCookie string
	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCookie = r.Header.Get("Cookie")
		_, _ = w.Write([]byte(`{"data": {"currentPlayer": {"name": "alpha"}}}`))
	})

	auth := &models.AuthContext{BulletToken: "bullet", GameToken: "game"}
	auth.User.Country = "US"
	auth.User.Lang = "en-US"

	result, err := m.PreCheck(context.Background(), auth)
	if err != nil {
		t.Fatalf("PreCheck() error = %v", err)
	}
	if result != models.PreCheckReady {
		t.Errorf("result = %s, want Ready", result)
	}
	// a successful probe never touches the stored chain
	if auth.BulletToken != "bullet" || auth.GameToken != "game" {
		t.Error("auth context should be untouched on the happy path")
	}

	if gotAuth != "Bearer bullet" {
		t.Errorf("Authorization = %s, want Bearer bullet", gotAuth)
	}
	if !strings.Contains(gotCookie, "_gtoken=game") {
		t.Errorf("Cookie = %s, want _gtoken", gotCookie)
	}
}

func TestRebuildFailureLeavesContextUntouched(t *testing.T) {
	// the token endpoint answers with an empty object, so the chain
	// dies at the access-token exchange
	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {})

	auth := &models.AuthContext{
		SessionToken: "session-1",
		GameToken:    "game-old",
		BulletToken:  "bullet-old",
	}
	before := *auth

	err := m.Rebuild(context.Background(), auth)
	if err == nil {
		t.Fatal("expected rebuild to fail")
	}
	if *auth != before {
		t.Errorf("context mutated by failed rebuild:\n got  %+v\n want %+v", *auth, before)
	}
}

func TestPreCheckEmptyProbeTriggersRebuild(t *testing.T) {
	// empty data means the bullet token went stale; the rebuild then
	// dies at the access-token exchange since the session token is gone
	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {}}`))
	})

	auth := &models.AuthContext{BulletToken: "stale", GameToken: "stale"}

	result, err := m.PreCheck(context.Background(), auth)
	if err == nil {
		t.Fatal("expected error when the chain cannot be rebuilt")
	}
	if result != models.PreCheckNeedRebuildFromBegin {
		t.Errorf("result = %s, want NeedRebuildFromBegin", result)
	}
}
