// Package discovery serves the OAuth discovery and registration endpoints
// MCP clients use to find the Box authorization server:
//
//   - RFC 9728 protected resource metadata, read from a local file;
//   - RFC 8414 authorization server metadata, proxied from Box and completed
//     with the fields Box does not publish;
//   - a stub RFC 7591 dynamic client registration that hands out the
//     configured Box application credentials.
package discovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/koeppj/mcp-server-box/internal/config"
	"github.com/koeppj/mcp-server-box/internal/middleware"
	"github.com/koeppj/mcp-server-box/pkg/client"
	"github.com/modelcontextprotocol/go-sdk/oauthex"
	"go.uber.org/zap"
)

const (
	metadataCacheControl     = "public, max-age=3600"
	registrationCacheControl = "no-store"

	// maxMetadataBody bounds upstream and registration bodies.
	maxMetadataBody = 1 << 20
)

// FetchObserver is notified of every upstream metadata fetch.
type FetchObserver interface {
	ObserveDiscoveryFetch(outcome string)
}

// Handler serves the discovery routes.
type Handler struct {
	metadataFile string
	upstreamURL  string
	clientID     string
	clientSecret string

	httpClient *http.Client
	now        func() time.Time
	observer   FetchObserver
}

// Option configures a Handler.
type Option func(*Handler)

// WithHTTPClient sets the client used for the upstream metadata request.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Handler) {
		h.httpClient = c
	}
}

// WithClock sets the clock used for client_id_issued_at.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithObserver sets the observer notified of upstream fetches.
func WithObserver(o FetchObserver) Option {
	return func(h *Handler) {
		h.observer = o
	}
}

// NewHandler creates a Handler from the configuration.
func NewHandler(cfg *config.Config, opts ...Option) *Handler {
	h := &Handler{
		metadataFile: cfg.McpAuth.ProtectedResourceMetadataFile,
		upstreamURL:  cfg.McpAuth.AuthorizationServerMetadataURL,
		clientID:     cfg.BoxAPI.ClientID,
		clientSecret: cfg.BoxAPI.ClientSecret,
		httpClient:   client.NewHTTPClient(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Install registers every discovery route on mux. It must be called once,
// before the MCP handler is mounted and before the server starts.
func (h *Handler) Install(mux *http.ServeMux) {
	for _, path := range []string{
		middleware.PathProtectedResource,
		middleware.PathProtectedResourceMCP,
		middleware.PathProtectedResourceSSE,
	} {
		mux.HandleFunc("GET "+path, h.ProtectedResource)
		mux.HandleFunc("OPTIONS "+path, h.ProtectedResource)
	}

	for _, path := range []string{
		middleware.PathAuthorizationServer,
		middleware.PathAuthorizationServerMCP,
		middleware.PathAuthorizationServerSSE,
	} {
		mux.HandleFunc("GET "+path, h.AuthorizationServer)
		mux.HandleFunc("OPTIONS "+path, h.AuthorizationServer)
	}

	mux.HandleFunc("POST "+middleware.PathRegister, h.Register)
	mux.HandleFunc("GET "+middleware.PathRegister, h.Register)

	zap.L().Info("Added OAuth discovery endpoints", zap.Int("count", len(middleware.PublicPaths)))
}

// ProtectedResource serves the protected resource metadata file verbatim.
// The file is read on every request so it can be edited without a restart.
func (h *Handler) ProtectedResource(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		writePreflight(w)
		return
	}

	raw, _, err := h.loadProtectedResource()
	if err != nil {
		zap.L().Error("Failed to load protected resource metadata", zap.String("file", h.metadataFile), zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorServerError, ErrMetadataNotConfigured.Error())
		return
	}

	writeMetadata(w, raw)
}

// AuthorizationServer proxies the upstream authorization server metadata.
// A missing registration_endpoint points at this server's registration stub
// and missing scopes_supported are taken from the protected resource
// metadata. Every other upstream field is passed through untouched.
func (h *Handler) AuthorizationServer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		writePreflight(w)
		return
	}

	upstream, err := h.fetchUpstream(r)
	if err != nil {
		zap.L().Error("Failed to fetch authorization server metadata", zap.Error(err))
		middleware.WriteError(w, http.StatusBadGateway, middleware.ErrorServerError, err.Error())
		return
	}

	// The protected resource metadata is optional here.
	_, prm, err := h.loadProtectedResource()
	if err != nil {
		zap.L().Debug("Protected resource metadata unavailable, deriving base URL from request", zap.Error(err))
		prm = nil
	}

	if _, ok := upstream["registration_endpoint"]; !ok {
		base := ""
		if prm != nil {
			base = prm.Resource
		}
		if base == "" {
			base = requestBaseURL(r)
		}
		endpoint, err := json.Marshal(normalizeResourceURL(base) + middleware.PathRegister)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorServerError, err.Error())
			return
		}
		upstream["registration_endpoint"] = endpoint
	}

	if _, ok := upstream["scopes_supported"]; !ok && prm != nil && len(prm.ScopesSupported) > 0 {
		scopes, err := json.Marshal(prm.ScopesSupported)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorServerError, err.Error())
			return
		}
		upstream["scopes_supported"] = scopes
	}

	body, err := json.Marshal(upstream)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorServerError, err.Error())
		return
	}

	writeMetadata(w, body)
}

// loadProtectedResource reads the metadata file and returns both its raw
// content and the fields this server needs from it.
func (h *Handler) loadProtectedResource() ([]byte, *oauthex.ProtectedResourceMetadata, error) {
	raw, err := os.ReadFile(h.metadataFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMetadataNotConfigured, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid JSON in %s: %w", ErrMetadataNotConfigured, h.metadataFile, err)
	}
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("%w: %s holds no metadata", ErrMetadataNotConfigured, h.metadataFile)
	}

	// Unknown or mistyped fields are served verbatim; only resource and
	// scopes_supported are read here.
	var prm oauthex.ProtectedResourceMetadata
	if err := json.Unmarshal(raw, &prm); err != nil {
		zap.L().Warn("Protected resource metadata has unexpected field types", zap.String("file", h.metadataFile), zap.Error(err))
		prm = oauthex.ProtectedResourceMetadata{}
	}

	return raw, &prm, nil
}

// fetchUpstream performs one GET of the upstream metadata, bound to the
// inbound request's context.
func (h *Handler) fetchUpstream(r *http.Request) (map[string]json.RawMessage, error) {
	metadata, err := h.doFetchUpstream(r)
	if h.observer != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		h.observer.ObserveDiscoveryFetch(outcome)
	}
	return metadata, err
}

func (h *Handler) doFetchUpstream(r *http.Request) (map[string]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, h.upstreamURL, nil)
	if err != nil {
		return nil, &UpstreamError{URL: h.upstreamURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{URL: h.upstreamURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBody))
	if err != nil {
		return nil, &UpstreamError{URL: h.upstreamURL, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			URL:        h.upstreamURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", resp.Status),
		}
	}

	var metadata map[string]json.RawMessage
	if err := json.Unmarshal(body, &metadata); err != nil || metadata == nil {
		if err == nil {
			err = errors.New("metadata is not a JSON object")
		}
		return nil, &UpstreamError{URL: h.upstreamURL, Err: fmt.Errorf("failed to parse metadata: %w", err)}
	}

	return metadata, nil
}

// normalizeResourceURL strips one trailing "/", then "/mcp", then "/sse".
func normalizeResourceURL(resource string) string {
	resource = strings.TrimSuffix(resource, "/")
	resource = strings.TrimSuffix(resource, "/mcp")
	resource = strings.TrimSuffix(resource, "/sse")
	return resource
}

// requestBaseURL reconstructs the externally visible origin of r.
func requestBaseURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}

	return scheme + "://" + host
}

func writePreflight(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	w.WriteHeader(http.StatusOK)
}

func writeMetadata(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", metadataCacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, bytes.NewReader(body)); err != nil {
		zap.L().Error("Failed to write metadata response", zap.Error(err))
	}
}
