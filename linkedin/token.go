package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AccessToken is a bearer token with the moment it was obtained
type AccessToken struct {
	Value   string
	SavedAt time.Time
}

// TokenStore persists the most recent access token. Save replaces the previous token.
type TokenStore interface {
	Load(ctx context.Context) (AccessToken, bool, error)
	Save(ctx context.Context, tok AccessToken) error
}

type tokenFile struct {
	AccessToken string `json:"access_token"`
	SavedAt     int64  `json:"saved_at"`
}

// FileTokenStore keeps the token as JSON at Path
type FileTokenStore struct {
	Path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path}
}

func (s *FileTokenStore) Load(_ context.Context) (AccessToken, bool, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return AccessToken{}, false, nil
	}
	if err != nil {
		return AccessToken{}, false, fmt.Errorf("failed to read token cache at '%s' with %w", s.Path, err)
	}
	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return AccessToken{}, false, fmt.Errorf("failed to decode token cache at '%s' with %w", s.Path, err)
	}
	if f.AccessToken == "" {
		return AccessToken{}, false, nil
	}
	return AccessToken{Value: f.AccessToken, SavedAt: time.Unix(f.SavedAt, 0).UTC()}, true, nil
}

func (s *FileTokenStore) Save(_ context.Context, tok AccessToken) error {
	blob, err := json.Marshal(tokenFile{AccessToken: tok.Value, SavedAt: tok.SavedAt.Unix()})
	if err != nil {
		return fmt.Errorf("failed to encode token with %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("failed to create token cache directory with %w", err)
	}
	if err := os.WriteFile(s.Path, blob, 0600); err != nil {
		return fmt.Errorf("failed to write token cache at '%s' with %w", s.Path, err)
	}
	return nil
}

// MemoryTokenStore is a TokenStore for tests
type MemoryTokenStore struct {
	mu  sync.Mutex
	tok *AccessToken
}

func (s *MemoryTokenStore) Load(_ context.Context) (AccessToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == nil {
		return AccessToken{}, false, nil
	}
	return *s.tok, true, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, tok AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = &tok
	return nil
}
