package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/koeppj/mcp-server-box/internal/config"
	"github.com/koeppj/mcp-server-box/pkg/client"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultTokenURL is Box's OAuth 2.0 token endpoint.
	DefaultTokenURL = "https://api.box.com/oauth2/token"
	// DefaultAuthURL is Box's OAuth 2.0 authorization endpoint.
	DefaultAuthURL = "https://account.box.com/api/oauth2/authorize"

	boxSubjectTypeParam = "box_subject_type"
	boxSubjectIDParam   = "box_subject_id"
)

// BuildObserver is notified of every client build attempt.
type BuildObserver interface {
	ObserveClientBuild(mode string, err error)
}

// Provider builds authenticated Box clients under one of the supported
// trust models. It is safe for concurrent use.
type Provider struct {
	cfg        config.BoxAPIConfig
	store      TokenStore
	httpClient *http.Client
	tokenURL   string
	authURL    string
	apiBaseURL string
	now        func() time.Time
	observer   BuildObserver
}

// Option configures a Provider.
type Option func(*Provider)

// WithTokenURL overrides the Box token endpoint.
func WithTokenURL(tokenURL string) Option {
	return func(p *Provider) { p.tokenURL = tokenURL }
}

// WithAPIBaseURL overrides the Box API root of built clients.
func WithAPIBaseURL(baseURL string) Option {
	return func(p *Provider) { p.apiBaseURL = baseURL }
}

// WithHTTPClient sets the HTTP client used for token requests and API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(p *Provider) { p.httpClient = httpClient }
}

// WithTokenStore replaces the file token cache.
func WithTokenStore(store TokenStore) Option {
	return func(p *Provider) { p.store = store }
}

// WithClock sets the time source used for assertions and token expiry.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithObserver registers a BuildObserver.
func WithObserver(observer BuildObserver) Option {
	return func(p *Provider) { p.observer = observer }
}

// NewProvider returns a Provider for the given Box settings.
func NewProvider(cfg config.BoxAPIConfig, opts ...Option) *Provider {
	p := &Provider{
		cfg:        cfg,
		httpClient: client.NewHTTPClient(),
		tokenURL:   DefaultTokenURL,
		authURL:    DefaultAuthURL,
		apiBaseURL: client.DefaultBaseURL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.store == nil {
		p.store = NewFileTokenStore(cfg.TokenCacheDir)
	}
	return p
}

// Build builds the shared client for mode. It returns a nil client for
// UpstreamAuthDelegated, whose clients are built per request by Delegated.
func (p *Provider) Build(ctx context.Context, mode config.UpstreamAuthMode) (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)

	switch mode {
	case config.UpstreamAuthOAuth:
		c, err = p.OAuth(ctx)
	case config.UpstreamAuthCCG:
		c, err = p.ClientCredentials(ctx)
	case config.UpstreamAuthJWT:
		c, err = p.JWT(ctx)
	case config.UpstreamAuthDelegated:
		zap.L().Info("Box client will be created per request from the caller's bearer token")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported Box auth type %q", mode)
	}

	p.observe(mode, err)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Created Box client", zap.String("mode", mode.String()))
	return c, nil
}

// OAuth builds a client from the cached OAuth token, refreshing it when it
// expires. Without a cached token every API call fails with
// ErrNotAuthorized.
func (p *Provider) OAuth(ctx context.Context) (*client.Client, error) {
	creds, err := NewOAuthCredentials(p.cfg)
	if err != nil {
		return nil, err
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.authURL,
			TokenURL:  p.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	source := newCachedSource(creds.CacheKey(), p.store, func(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error) {
		if current == nil || current.RefreshToken == "" {
			return nil, ErrNotAuthorized
		}
		// Only the refresh token is kept so the refresh happens even when
		// the access token is still valid.
		stale := &oauth2.Token{RefreshToken: current.RefreshToken}
		return conf.TokenSource(p.clientContext(ctx), stale).Token()
	})

	return p.newClient(source), nil
}

// ClientCredentials builds a client using Box's client credentials grant
// for the configured enterprise or user.
func (p *Provider) ClientCredentials(ctx context.Context) (*client.Client, error) {
	creds, err := NewClientCredentials(p.cfg)
	if err != nil {
		return nil, err
	}

	conf := p.ccgConfig(creds)
	source := newCachedSource(creds.CacheKey(), p.store, func(ctx context.Context, _ *oauth2.Token) (*oauth2.Token, error) {
		return conf.Token(p.clientContext(ctx))
	})

	return p.newClient(source), nil
}

func (p *Provider) ccgConfig(creds ClientCredentials) *clientcredentials.Config {
	params := url.Values{}
	if id := creds.Subject.EnterpriseID(); id != "" {
		params.Set(boxSubjectTypeParam, config.SubjectEnterprise.String())
		params.Set(boxSubjectIDParam, id)
	} else {
		params.Set(boxSubjectTypeParam, config.SubjectUser.String())
		params.Set(boxSubjectIDParam, creds.Subject.UserID())
	}

	return &clientcredentials.Config{
		ClientID:       creds.ClientID,
		ClientSecret:   creds.ClientSecret,
		TokenURL:       p.tokenURL,
		EndpointParams: params,
		AuthStyle:      oauth2.AuthStyleInParams,
	}
}

// JWT builds a client using Box's JWT server authentication. A token is
// fetched before returning so the subject takes effect upstream; a failure
// to obtain it fails the build.
func (p *Provider) JWT(ctx context.Context) (*client.Client, error) {
	creds, err := NewJWTCredentials(p.cfg)
	if err != nil {
		return nil, err
	}

	signer, err := newJWTSigner(creds, p.tokenURL, p.now)
	if err != nil {
		return nil, err
	}

	source := newCachedSource(creds.CacheKey(), p.store, func(ctx context.Context, _ *oauth2.Token) (*oauth2.Token, error) {
		return signer.exchange(ctx, p.httpClient)
	})

	c := p.newClient(source)
	if err := c.RefreshToken(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// Delegated builds a client that authenticates with the caller's own bearer
// token. The client belongs to the caller and is never cached.
func (p *Provider) Delegated(token string) (*client.Client, error) {
	if token == "" {
		return nil, errors.New("cannot create a Box client from an empty token")
	}
	return p.newClient(client.StaticToken(token)), nil
}

func (p *Provider) newClient(auth client.Authenticator) *client.Client {
	return client.NewClient(auth, client.WithBaseURL(p.apiBaseURL), client.WithHTTPClient(p.httpClient))
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) observe(mode config.UpstreamAuthMode, err error) {
	if p.observer != nil {
		p.observer.ObserveClientBuild(mode.String(), err)
	}
}
