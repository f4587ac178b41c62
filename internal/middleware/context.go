package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// contextKey is a custom type for context keys to avoid collisions with
// other packages that might use string keys. Using a struct pointer ensures
// uniqueness since each instance has a unique memory address.
type contextKey struct{ name string }

var (
	// tokenCtxKey is the context key for storing the caller's bearer token.
	// It's unexported to prevent external packages from accessing it directly.
	tokenCtxKey = &contextKey{"token"}
)

// Token context helpers.

// WithToken sets the token into the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey, token)
}

// Token gets the token from the context.
//
// Returns empty string if no token is found.
func Token(ctx context.Context) string {
	token, ok := ctx.Value(tokenCtxKey).(string)
	if ok {
		return token
	}

	return ""
}

// BearerToken returns the token of a "Bearer <token>" Authorization header,
// or empty string if the header is missing or uses another scheme.
//
// MCP transports hand tool handlers the request headers rather than the
// request context, so tools use this to recover the token the gate accepted.
func BearerToken(h http.Header) string {
	token, found := strings.CutPrefix(h.Get(authorizationHeader), bearerPrefix)
	if !found {
		return ""
	}

	return token
}
