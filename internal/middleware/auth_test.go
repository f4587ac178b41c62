package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/koeppj/mcp-server-box/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cr3t"

type decision struct {
	mode    string
	outcome string
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []decision
}

func (o *recordingObserver) ObserveGateDecision(mode, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, decision{mode: mode, outcome: outcome})
}

func newTestConfig(mcpAuth config.McpAuthMode, boxAuth config.UpstreamAuthMode, secret string) *config.Config {
	cfg := config.Default()
	cfg.Server.Transport = config.TransportHTTP
	cfg.Server.McpAuth = mcpAuth
	cfg.Server.BoxAuth = boxAuth
	cfg.McpAuth.AuthToken = secret
	return cfg
}

// tokenEchoHandler answers 200 with the token found in the request context.
func tokenEchoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(Token(r.Context())))
	})
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestGate(t *testing.T) {
	tests := map[string]struct {
		mcpAuth       config.McpAuthMode
		boxAuth       config.UpstreamAuthMode
		secret        string
		authorization string
		wantStatus    int
		wantError     string
		wantDesc      string
		wantToken     string
	}{
		"none forwards without header": {
			mcpAuth:    config.McpAuthNone,
			boxAuth:    config.UpstreamAuthCCG,
			wantStatus: http.StatusOK,
		},
		"none ignores garbage header": {
			mcpAuth:       config.McpAuthNone,
			boxAuth:       config.UpstreamAuthOAuth,
			authorization: "Basic Zm9vOmJhcg==",
			wantStatus:    http.StatusOK,
		},
		"token accepts the secret": {
			mcpAuth:       config.McpAuthToken,
			boxAuth:       config.UpstreamAuthJWT,
			secret:        testSecret,
			authorization: "Bearer " + testSecret,
			wantStatus:    http.StatusOK,
		},
		"token rejects another value": {
			mcpAuth:       config.McpAuthToken,
			boxAuth:       config.UpstreamAuthJWT,
			secret:        testSecret,
			authorization: "Bearer nope",
			wantStatus:    http.StatusUnauthorized,
			wantError:     ErrorInvalidToken,
			wantDesc:      "The access token is invalid or expired",
		},
		"token rejects empty bearer value": {
			mcpAuth:       config.McpAuthToken,
			boxAuth:       config.UpstreamAuthJWT,
			secret:        testSecret,
			authorization: "Bearer ",
			wantStatus:    http.StatusUnauthorized,
			wantError:     ErrorInvalidToken,
			wantDesc:      "The access token is invalid or expired",
		},
		"token rejects secret with trailing space": {
			mcpAuth:       config.McpAuthToken,
			boxAuth:       config.UpstreamAuthJWT,
			secret:        testSecret,
			authorization: "Bearer " + testSecret + " ",
			wantStatus:    http.StatusUnauthorized,
			wantError:     ErrorInvalidToken,
		},
		"token missing header": {
			mcpAuth:    config.McpAuthToken,
			boxAuth:    config.UpstreamAuthCCG,
			secret:     testSecret,
			wantStatus: http.StatusUnauthorized,
			wantError:  ErrorInvalidRequest,
			wantDesc:   "Missing Authorization header",
		},
		"token wrong scheme": {
			mcpAuth:       config.McpAuthToken,
			boxAuth:       config.UpstreamAuthCCG,
			secret:        testSecret,
			authorization: "Basic " + testSecret,
			wantStatus:    http.StatusUnauthorized,
			wantError:     ErrorInvalidRequest,
			wantDesc:      "Authorization header must use Bearer scheme",
		},
		"token scheme is case sensitive": {
			mcpAuth:       config.McpAuthToken,
			boxAuth:       config.UpstreamAuthCCG,
			secret:        testSecret,
			authorization: "bearer " + testSecret,
			wantStatus:    http.StatusUnauthorized,
			wantError:     ErrorInvalidRequest,
			wantDesc:      "Authorization header must use Bearer scheme",
		},
		"token without configured secret and valid looking header": {
			mcpAuth:       config.McpAuthToken,
			boxAuth:       config.UpstreamAuthCCG,
			authorization: "Bearer anything",
			wantStatus:    http.StatusInternalServerError,
			wantError:     ErrorServerError,
			wantDesc:      "Server authentication not properly configured",
		},
		"token without configured secret and no header": {
			mcpAuth:    config.McpAuthToken,
			boxAuth:    config.UpstreamAuthCCG,
			wantStatus: http.StatusInternalServerError,
			wantError:  ErrorServerError,
		},
		"delegated stores the token": {
			mcpAuth:       config.McpAuthNone,
			boxAuth:       config.UpstreamAuthDelegated,
			authorization: "Bearer user-token",
			wantStatus:    http.StatusOK,
			wantToken:     "user-token",
		},
		"delegated missing header": {
			mcpAuth:    config.McpAuthNone,
			boxAuth:    config.UpstreamAuthDelegated,
			wantStatus: http.StatusUnauthorized,
			wantError:  ErrorInvalidRequest,
			wantDesc:   "Missing Authorization header",
		},
		"delegated wrong scheme": {
			mcpAuth:       config.McpAuthNone,
			boxAuth:       config.UpstreamAuthDelegated,
			authorization: "Token user-token",
			wantStatus:    http.StatusUnauthorized,
			wantError:     ErrorInvalidRequest,
			wantDesc:      "Authorization header must use Bearer scheme",
		},
		"delegated empty bearer value": {
			mcpAuth:       config.McpAuthNone,
			boxAuth:       config.UpstreamAuthDelegated,
			authorization: "Bearer   ",
			wantStatus:    http.StatusUnauthorized,
			wantError:     ErrorInvalidRequest,
		},
		"oauth accepts any well formed bearer": {
			mcpAuth:       config.McpAuthOAuth,
			boxAuth:       config.UpstreamAuthDelegated,
			authorization: "Bearer not-even-a-jwt",
			wantStatus:    http.StatusOK,
			wantToken:     "not-even-a-jwt",
		},
		"oauth missing header": {
			mcpAuth:    config.McpAuthOAuth,
			boxAuth:    config.UpstreamAuthDelegated,
			wantStatus: http.StatusUnauthorized,
			wantError:  ErrorInvalidRequest,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			gate := NewGate(newTestConfig(tt.mcpAuth, tt.boxAuth, tt.secret), nil)
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			rr := httptest.NewRecorder()

			gate.Middleware(tokenEchoHandler()).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError == "" {
				assert.Equal(t, tt.wantToken, rr.Body.String())
				assert.Empty(t, rr.Header().Get("WWW-Authenticate"))
				return
			}

			assert.Equal(t, wwwAuthenticate, rr.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			body := decodeError(t, rr)
			assert.Equal(t, tt.wantError, body.Error)
			if tt.wantDesc != "" {
				assert.Equal(t, tt.wantDesc, body.ErrorDescription)
			}
		})
	}
}

func TestGateChallengeHeader(t *testing.T) {
	assert.Equal(t,
		`Bearer realm="OAuth", resource_metadata="/.well-known/oauth-protected-resource"`,
		wwwAuthenticate)
}

func TestGatePublicPaths(t *testing.T) {
	modes := map[string]*config.Config{
		"token":     newTestConfig(config.McpAuthToken, config.UpstreamAuthCCG, testSecret),
		"no secret": newTestConfig(config.McpAuthToken, config.UpstreamAuthCCG, ""),
		"oauth":     newTestConfig(config.McpAuthOAuth, config.UpstreamAuthDelegated, ""),
		"delegated": newTestConfig(config.McpAuthNone, config.UpstreamAuthDelegated, ""),
	}

	for name, cfg := range modes {
		for _, path := range PublicPaths {
			t.Run(name+" "+path, func(t *testing.T) {
				gate := NewGate(cfg, nil)
				req := httptest.NewRequest(http.MethodGet, path, nil)
				rr := httptest.NewRecorder()

				gate.Middleware(tokenEchoHandler()).ServeHTTP(rr, req)

				assert.Equal(t, http.StatusOK, rr.Code)
			})
		}
	}
}

func TestGateAllowListIsExact(t *testing.T) {
	gate := NewGate(newTestConfig(config.McpAuthToken, config.UpstreamAuthCCG, testSecret), nil)

	for _, path := range []string{
		PathProtectedResource + "/",
		PathProtectedResource + "/other",
		PathRegister + "/x",
		"/oauth",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()

		gate.Middleware(tokenEchoHandler()).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestGateDoesNotForwardRejectedRequests(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	gate := NewGate(newTestConfig(config.McpAuthToken, config.UpstreamAuthCCG, testSecret), nil)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	gate.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.False(t, called)
}

func TestGateTokenModeDoesNotStoreSecret(t *testing.T) {
	gate := NewGate(newTestConfig(config.McpAuthToken, config.UpstreamAuthCCG, testSecret), nil)
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rr := httptest.NewRecorder()

	gate.Middleware(tokenEchoHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestGateObserver(t *testing.T) {
	observer := &recordingObserver{}
	gate := NewGate(newTestConfig(config.McpAuthToken, config.UpstreamAuthCCG, testSecret), observer)
	handler := gate.Middleware(tokenEchoHandler())

	ok := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	ok.Header.Set("Authorization", "Bearer "+testSecret)
	handler.ServeHTTP(httptest.NewRecorder(), ok)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/mcp", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, PathRegister, nil))

	misconfigured := NewGate(newTestConfig(config.McpAuthToken, config.UpstreamAuthCCG, ""), observer)
	misconfigured.Middleware(tokenEchoHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/mcp", nil))

	assert.Equal(t, []decision{
		{mode: "token", outcome: outcomeAllowed},
		{mode: "token", outcome: outcomeDenied},
		{mode: "token", outcome: outcomeExempt},
		{mode: "token", outcome: outcomeError},
	}, observer.decisions)
}

func TestBearerToken(t *testing.T) {
	tests := map[string]struct {
		header string
		want   string
	}{
		"bearer":       {header: "Bearer abc", want: "abc"},
		"missing":      {header: "", want: ""},
		"other scheme": {header: "Basic abc", want: ""},
		"lower case":   {header: "bearer abc", want: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, BearerToken(h))
		})
	}
}

func TestTokenContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, Token(req.Context()))

	ctx := WithToken(req.Context(), "abc")
	assert.Equal(t, "abc", Token(ctx))
}
