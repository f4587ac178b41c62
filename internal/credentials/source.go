package credentials

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// fetchFunc obtains a new token. current is the last known token, possibly
// nil or expired.
type fetchFunc func(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error)

// cachedSource is a token source backed by a TokenStore. Fetches and
// refreshes are serialized so concurrent callers share one upstream call.
type cachedSource struct {
	key   string
	store TokenStore
	fetch fetchFunc

	mu     sync.Mutex
	token  *oauth2.Token
	loaded bool
}

func newCachedSource(key string, store TokenStore, fetch fetchFunc) *cachedSource {
	return &cachedSource{key: key, store: store, fetch: fetch}
}

// Token returns the cached token while it is valid and fetches a new one
// otherwise.
func (s *cachedSource) Token() (*oauth2.Token, error) {
	return s.get(context.Background(), false)
}

// Refresh fetches a new token even if the cached one is still valid.
func (s *cachedSource) Refresh(ctx context.Context) (*oauth2.Token, error) {
	return s.get(ctx, true)
}

func (s *cachedSource) get(ctx context.Context, force bool) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		token, err := s.store.Load(s.key)
		if err != nil {
			zap.L().Warn("Ignoring unreadable token cache", zap.String("key", s.key), zap.Error(err))
		}
		s.token = token
		s.loaded = true
	}

	if !force && s.token.Valid() {
		return s.token, nil
	}

	token, err := s.fetch(ctx, s.token)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(s.key, token); err != nil {
		zap.L().Error("Failed to persist token", zap.String("key", s.key), zap.Error(err))
	}
	s.token = token

	zap.L().Debug("Obtained Box token", zap.String("key", s.key), zap.Time("expiry", token.Expiry))

	return token, nil
}
