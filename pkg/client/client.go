package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/koeppj/mcp-server-box/pkg/version"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the root of the Box content API.
	DefaultBaseURL = "https://api.box.com"

	// AttributionHeader identifies this server to Box on every API call.
	AttributionHeader = "X-Box-AI-Library"
	// AttributionValue is the fixed value sent in AttributionHeader.
	AttributionValue = "mcp-server-box"

	// DefaultTimeout bounds every call made through the default HTTP
	// client, token requests included.
	DefaultTimeout = 30 * time.Second

	currentUserPath = "/2.0/users/me"
	maxErrorBody    = 4096
)

// ErrNotRefreshable is returned by Refresh on token sources that cannot
// obtain a new token on their own.
var ErrNotRefreshable = errors.New("token cannot be refreshed")

// Authenticator supplies access tokens for the Box API.
type Authenticator interface {
	oauth2.TokenSource

	// Refresh discards any cached token and fetches a new one.
	Refresh(ctx context.Context) (*oauth2.Token, error)
}

// Client is an authenticated Box API client. It is safe for concurrent use
// as long as its Authenticator is.
type Client struct {
	baseURL    string
	auth       Authenticator
	httpClient *http.Client
}

// NewHTTPClient returns the HTTP client used when none is configured.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client whose transport carries the API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client that authenticates every request with auth and
// sends the attribution header.
func NewClient(auth Authenticator, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		auth:       auth,
		httpClient: NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.httpClient = &http.Client{
		Timeout:       c.httpClient.Timeout,
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
		Transport: &oauth2.Transport{
			Source: auth,
			Base:   &attributionTransport{base: base},
		},
	}

	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RefreshToken forces the authenticator to fetch a new token.
func (c *Client) RefreshToken(ctx context.Context) error {
	if _, err := c.auth.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to refresh Box token: %w", err)
	}
	return nil
}

// Do sends an authenticated request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// GetJSON issues a GET for path, relative to the base URL, and decodes the
// JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: http.MethodGet, Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	return nil
}

// User is the subset of a Box user object returned by CurrentUser.
type User struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Login   string `json:"login"`
	Status  string `json:"status,omitempty"`
	Role    string `json:"role,omitempty"`
	Created string `json:"created_at,omitempty"`
}

// CurrentUser returns the user the client is authenticated as.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.GetJSON(ctx, currentUserPath, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// APIError is a non-2xx response from the Box API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("box API %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type attributionTransport struct {
	base http.RoundTripper
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// oauth2.Transport already cloned the request.
	req.Header.Set(AttributionHeader, AttributionValue)
	req.Header.Set("User-Agent", version.UserAgent())
	return t.base.RoundTrip(req)
}

// StaticToken returns an Authenticator for a token obtained elsewhere, such
// as the bearer token of an inbound MCP request.
func StaticToken(accessToken string) Authenticator {
	return staticToken{token: &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}}
}

type staticToken struct {
	token *oauth2.Token
}

func (s staticToken) Token() (*oauth2.Token, error) {
	return s.token, nil
}

func (s staticToken) Refresh(context.Context) (*oauth2.Token, error) {
	return nil, ErrNotRefreshable
}
