package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vexaai/vexa/pkg/errors"
)

// Identity is the authenticated user's profile. Immutable once fetched;
// replaced wholesale on profile refresh.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Session is the server's response to a successful login. Exactly one
// session is active per process.
type Session struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	User        Identity `json:"user"`
}

// Store holds the bearer credential and identity for the process.
// A presence check via IsAuthenticated never validates against the server;
// a 401 response is the source of truth for expiry.
type Store interface {
	SetAuth(session Session) error
	GetAuth() (*Identity, string)
	ClearAuth() error
	IsAuthenticated() bool
}

// storedAuth is the single on-disk shape for persisted credentials.
// The two field names below are the only place the key names are spelled.
type storedAuth struct {
	AccessToken string    `json:"access_token"`
	User        *Identity `json:"user"`
}

// FileStore persists the credential and identity across process restarts
// in a single JSON file so both are replaced or cleared together.
type FileStore struct {
	path  string
	mu    sync.Mutex
	state storedAuth
}

// NewFileStore opens the credential store at path, loading any persisted
// state. A missing or unreadable file yields the no-auth state rather than
// an error.
func NewFileStore(path string) *FileStore {
	s := &FileStore{path: path}
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &s.state)
	}
	if strings.TrimSpace(s.state.AccessToken) == "" {
		s.state = storedAuth{}
	}
	return s
}

// DefaultPath resolves the credential file location so credentials live
// next to the rest of the durable state. VEXA_CREDENTIALS_PATH wins, then
// dataDir (the configured data directory), then VEXA_DATA_DIR, then
// ~/.vexa/credentials.json.
func DefaultPath(dataDir string) (string, error) {
	if path := strings.TrimSpace(os.Getenv("VEXA_CREDENTIALS_PATH")); path != "" {
		return path, nil
	}

	if dir := strings.TrimSpace(dataDir); dir != "" {
		return filepath.Join(dir, "credentials.json"), nil
	}

	if dir := strings.TrimSpace(os.Getenv("VEXA_DATA_DIR")); dir != "" {
		return filepath.Join(dir, "credentials.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vexa", "credentials.json"), nil
}

// SetAuth persists the credential and identity together. Either both are
// updated or neither: on write failure the prior state stays readable.
func (s *FileStore) SetAuth(session Session) error {
	if strings.TrimSpace(session.AccessToken) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "auth session has empty access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user := session.User
	next := storedAuth{AccessToken: session.AccessToken, User: &user}
	if err := s.persistLocked(next); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "persist credentials")
	}
	s.state = next
	return nil
}

// GetAuth returns the current identity and token, or (nil, "") when never
// set or cleared. Safe to call before any network context exists.
func (s *FileStore) GetAuth() (*Identity, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.AccessToken == "" {
		return nil, ""
	}
	if s.state.User == nil {
		return nil, s.state.AccessToken
	}
	user := *s.state.User
	return &user, s.state.AccessToken
}

// ClearAuth removes the credential and identity. Idempotent.
func (s *FileStore) ClearAuth() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = storedAuth{}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "remove credentials")
	}
	return nil
}

// IsAuthenticated reports whether a non-empty token is present. Presence
// only; token validity is decided by the server.
func (s *FileStore) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken != ""
}

// persistLocked writes the state atomically via a temp file rename.
func (s *FileStore) persistLocked(state storedAuth) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
