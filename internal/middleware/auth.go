package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/koeppj/mcp-server-box/internal/config"
	"go.uber.org/zap"
)

// wwwAuthenticate is sent with every rejection so clients can discover the
// protected resource metadata.
const wwwAuthenticate = `Bearer realm="OAuth", resource_metadata="` + PathProtectedResource + `"`

// Gate outcomes reported to the DecisionObserver.
const (
	outcomeAllowed = "allowed"
	outcomeExempt  = "exempt"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)

// DecisionObserver is notified of every gate decision.
type DecisionObserver interface {
	ObserveGateDecision(mode, outcome string)
}

// Gate authenticates inbound MCP requests according to the MCP and Box
// auth modes.
//
//	mcp auth  box auth        behavior
//	none      not mcp_client  forward
//	none      mcp_client      require a Bearer token and store it in the context
//	token     any             require Bearer <shared secret>
//	oauth     mcp_client      require a Bearer token and store it in the context
//
// The gate only reads request headers. It never reads the body nor wraps the
// ResponseWriter, so streaming transports are unaffected.
type Gate struct {
	mcpAuth   config.McpAuthMode
	boxAuth   config.UpstreamAuthMode
	authToken string
	observer  DecisionObserver
}

// NewGate creates a Gate for the normalized configuration. observer may be
// nil.
func NewGate(cfg *config.Config, observer DecisionObserver) *Gate {
	return &Gate{
		mcpAuth:   cfg.Server.McpAuth,
		boxAuth:   cfg.Server.BoxAuth,
		authToken: cfg.McpAuth.AuthToken,
		observer:  observer,
	}
}

// Middleware wraps next with the gate.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := zap.L().With(zap.String("method", r.Method), zap.String("path", r.URL.Path))

		if slices.Contains(PublicPaths, r.URL.Path) {
			log.Debug("Public OAuth discovery endpoint accessed")
			g.observe(outcomeExempt)
			next.ServeHTTP(w, r)
			return
		}

		switch {
		case g.mcpAuth == config.McpAuthNone && g.boxAuth != config.UpstreamAuthDelegated:
			g.observe(outcomeAllowed)
			next.ServeHTTP(w, r)

		case g.mcpAuth == config.McpAuthToken:
			if !g.checkSharedSecret(w, r, log) {
				return
			}
			log.Debug("Token authentication successful")
			g.observe(outcomeAllowed)
			next.ServeHTTP(w, r)

		default:
			// Delegated and OAuth modes only check the header syntax. Box
			// validates the token on first use.
			token, ok := g.bearerToken(w, r, log)
			if !ok {
				return
			}
			log.Debug("Bearer token present, a Box client will be created from it")
			g.observe(outcomeAllowed)
			next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
		}
	})
}

// checkSharedSecret compares the bearer value with the configured secret.
// The comparison is a plain string equality.
func (g *Gate) checkSharedSecret(w http.ResponseWriter, r *http.Request, log *zap.Logger) bool {
	if g.authToken == "" {
		log.Error(config.EnvAuthToken + " not configured")
		g.reject(w, http.StatusInternalServerError, ErrorServerError, "Server authentication not properly configured")
		return false
	}

	header := r.Header.Get(authorizationHeader)
	if header == "" {
		log.Warn("Missing authorization header")
		g.reject(w, http.StatusUnauthorized, ErrorInvalidRequest, "Missing Authorization header")
		return false
	}

	token, found := strings.CutPrefix(header, bearerPrefix)
	if !found {
		log.Warn("Invalid authorization header format")
		g.reject(w, http.StatusUnauthorized, ErrorInvalidRequest, "Authorization header must use Bearer scheme")
		return false
	}

	if token != g.authToken {
		log.Warn("Invalid token")
		g.reject(w, http.StatusUnauthorized, ErrorInvalidToken, "The access token is invalid or expired")
		return false
	}

	return true
}

// bearerToken returns the value of a syntactically valid Bearer header.
func (g *Gate) bearerToken(w http.ResponseWriter, r *http.Request, log *zap.Logger) (string, bool) {
	header := r.Header.Get(authorizationHeader)
	if header == "" {
		log.Warn("Missing authorization header")
		g.reject(w, http.StatusUnauthorized, ErrorInvalidRequest, "Missing Authorization header")
		return "", false
	}

	token, found := strings.CutPrefix(header, bearerPrefix)
	if !found {
		log.Warn("Invalid authorization header format")
		g.reject(w, http.StatusUnauthorized, ErrorInvalidRequest, "Authorization header must use Bearer scheme")
		return "", false
	}

	if strings.TrimSpace(token) == "" {
		log.Warn("Empty bearer token")
		g.reject(w, http.StatusUnauthorized, ErrorInvalidRequest, "Bearer token is empty")
		return "", false
	}

	return token, true
}

func (g *Gate) reject(w http.ResponseWriter, status int, code, description string) {
	outcome := outcomeDenied
	if status >= http.StatusInternalServerError {
		outcome = outcomeError
	}
	g.observe(outcome)

	w.Header().Set("WWW-Authenticate", wwwAuthenticate)
	WriteError(w, status, code, description)
}

func (g *Gate) observe(outcome string) {
	if g.observer != nil {
		g.observer.ObserveGateDecision(g.mcpAuth.String(), outcome)
	}
}
