package session

//go:generate go tool -modfile ../../gotools/mockgen/go.mod mockgen -destination=mocks/provider_mock.go -package=mocks . ClientProvider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/koeppj/mcp-server-box/internal/config"
	"github.com/koeppj/mcp-server-box/internal/middleware"
	"github.com/koeppj/mcp-server-box/pkg/client"
	"go.uber.org/zap"
)

// ErrNoRequestToken is returned by ActiveClient when there is no shared
// client and the context carries no caller token, for example because the
// auth gate did not run.
var ErrNoRequestToken = errors.New("no Box client available: no shared client and no bearer token in request context")

// ClientProvider builds Box clients.
type ClientProvider interface {
	Build(ctx context.Context, mode config.UpstreamAuthMode) (*client.Client, error)
	Delegated(token string) (*client.Client, error)
}

// Session hands tool handlers an authenticated Box client. It holds either
// one shared client for the life of the process or, in delegated mode, builds
// a client per request from the caller's token.
type Session struct {
	mode     config.UpstreamAuthMode
	provider ClientProvider
	shared   *client.Client
}

// Open builds the shared client for mode. Delegated mode builds nothing.
func Open(ctx context.Context, mode config.UpstreamAuthMode, provider ClientProvider) (*Session, error) {
	s := &Session{mode: mode, provider: provider}
	if mode == config.UpstreamAuthDelegated {
		return s, nil
	}

	shared, err := provider.Build(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create Box client: %w", err)
	}
	s.shared = shared

	return s, nil
}

// Mode returns the trust model the session was opened with.
func (s *Session) Mode() config.UpstreamAuthMode {
	return s.mode
}

// ActiveClient returns the shared client if there is one, and otherwise a
// new client built from the token stored in ctx. The returned per-request
// client must not be retained beyond the request.
func (s *Session) ActiveClient(ctx context.Context) (*client.Client, error) {
	if s.shared != nil {
		return s.shared, nil
	}

	token := middleware.Token(ctx)
	if token == "" {
		return nil, ErrNoRequestToken
	}

	zap.L().Debug("Creating Box client from request bearer token")
	return s.provider.Delegated(token)
}

// WithRequestHeader stores the bearer token from the request headers the MCP
// transport passes to tool handlers. ctx is returned unchanged when there is
// no bearer token.
func WithRequestHeader(ctx context.Context, h http.Header) context.Context {
	if token := middleware.BearerToken(h); token != "" {
		return middleware.WithToken(ctx, token)
	}

	return ctx
}
