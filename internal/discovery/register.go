package discovery

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/koeppj/mcp-server-box/internal/middleware"
	"go.uber.org/zap"
)

// Registration defaults applied when the caller omits a field.
var (
	defaultRedirectURIs            = json.RawMessage(`[]`)
	defaultGrantTypes              = json.RawMessage(`["authorization_code","refresh_token"]`)
	defaultResponseTypes           = json.RawMessage(`["code"]`)
	defaultTokenEndpointAuthMethod = json.RawMessage(`"client_secret_post"`)
)

// RegistrationResponse is the RFC 7591 client information response. The
// client metadata fields hold the caller's values verbatim.
type RegistrationResponse struct {
	ClientID                string          `json:"client_id"`
	ClientSecret            string          `json:"client_secret"`
	ClientIDIssuedAt        int64           `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64           `json:"client_secret_expires_at"`
	RedirectURIs            json.RawMessage `json:"redirect_uris"`
	GrantTypes              json.RawMessage `json:"grant_types"`
	ResponseTypes           json.RawMessage `json:"response_types"`
	TokenEndpointAuthMethod json.RawMessage `json:"token_endpoint_auth_method"`
}

// Register is a stub dynamic client registration endpoint. Box does not
// support registration, so every caller receives the configured Box
// application credentials. The secret never expires.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", registrationCacheControl)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMetadataBody))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorInvalidRequest, "failed to read request body")
		return
	}

	request := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) > 0 {
		var parsed map[string]json.RawMessage
		if err := json.Unmarshal(body, &parsed); err != nil || parsed == nil {
			zap.L().Warn("Invalid client registration request", zap.Error(err))
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorInvalidClientMetadata,
				"registration request must be a JSON object")
			return
		}
		request = parsed
	}

	zap.L().Debug("Client registration request", zap.ByteString("request", body))

	resp := RegistrationResponse{
		ClientID:                h.clientID,
		ClientSecret:            h.clientSecret,
		ClientIDIssuedAt:        h.now().Unix(),
		ClientSecretExpiresAt:   0,
		RedirectURIs:            field(request, "redirect_uris", defaultRedirectURIs),
		GrantTypes:              field(request, "grant_types", defaultGrantTypes),
		ResponseTypes:           field(request, "response_types", defaultResponseTypes),
		TokenEndpointAuthMethod: field(request, "token_endpoint_auth_method", defaultTokenEndpointAuthMethod),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zap.L().Error("Failed to write registration response", zap.Error(err))
	}
}

func field(request map[string]json.RawMessage, name string, fallback json.RawMessage) json.RawMessage {
	if v, ok := request[name]; ok {
		return v
	}
	return fallback
}
