package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// OAuth 2.0 error codes used in error bodies.
const (
	ErrorInvalidRequest        = "invalid_request"
	ErrorInvalidToken          = "invalid_token"
	ErrorServerError           = "server_error"
	ErrorInvalidClientMetadata = "invalid_client_metadata"
)

// ErrorResponse is an OAuth style error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError writes an OAuth style JSON error with the given status.
// Headers already set on w are kept.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: code, ErrorDescription: description}); err != nil {
		zap.L().Error("Failed to write error response", zap.Error(err))
	}
}
