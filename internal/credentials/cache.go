package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/koeppj/mcp-server-box/internal/config"
	"golang.org/x/oauth2"
)

const cacheKeyPrefix = ".auth."

// CacheKey returns the token cache key for a trust model and subject:
// ".auth.oauth" for OAuth and ".auth.<mode>.<type>.<id>" otherwise.
// The id is path-escaped, so the key always names a single file and
// distinct ids never share one.
func CacheKey(mode config.UpstreamAuthMode, subject Subject) string {
	if mode == config.UpstreamAuthOAuth {
		return cacheKeyPrefix + mode.String()
	}
	return cacheKeyPrefix + mode.String() + "." + subject.Type.String() + "." + url.PathEscape(subject.ID)
}

func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid token cache key %q", key)
	}
	return nil
}

// TokenStore persists tokens by cache key.
type TokenStore interface {
	// Load returns the stored token, or nil if there is none.
	Load(key string) (*oauth2.Token, error)
	Save(key string, token *oauth2.Token) error
}

// FileTokenStore keeps one JSON file per cache key in a directory, fronted
// by an in-memory copy.
type FileTokenStore struct {
	dir string

	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

// NewFileTokenStore returns a store rooted at dir. An empty dir means the
// working directory.
func NewFileTokenStore(dir string) *FileTokenStore {
	if dir == "" {
		dir = "."
	}
	return &FileTokenStore{dir: dir, tokens: map[string]*oauth2.Token{}}
}

// Path returns the file a key is stored in.
func (s *FileTokenStore) Path(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *FileTokenStore) Load(key string) (*oauth2.Token, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.tokens[key]; ok {
		return token, nil
	}

	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token cache %s: %w", s.Path(key), err)
	}
	s.tokens[key] = &token

	return &token, nil
}

func (s *FileTokenStore) Save(key string, token *oauth2.Token) error {
	if err := checkKey(key); err != nil {
		return err
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// CreateTemp opens the file with mode 0600.
	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create token cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}

	s.tokens[key] = token
	return nil
}
