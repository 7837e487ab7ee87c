package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/Itoktsnhc/stat.itok/internal/errors"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps an application error onto an HTTP response.
func respondError(w http.ResponseWriter, err error) {
	status := apperrors.GetHTTPStatusCode(err)
	code := "INTERNAL_ERROR"
	message := err.Error()

	if catErr := apperrors.Categorize(err); catErr != nil {
		code = catErr.Code
		message = catErr.Message
	}

	respondErrorCode(w, status, code, message)
}

func respondErrorCode(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: errorBody{Code: code, Message: message}}) // nolint:errcheck
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data) // nolint:errcheck
	}
}

// parseJSONBody parses a JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
