package auth

import (
	"strings"
	"sync"

	"github.com/vexaai/vexa/pkg/errors"
)

// MemStore is an in-memory Store for tests and ephemeral sessions.
type MemStore struct {
	mu    sync.Mutex
	token string
	user  *Identity
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) SetAuth(session Session) error {
	if strings.TrimSpace(session.AccessToken) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "auth session has empty access token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user := session.User
	s.token = session.AccessToken
	s.user = &user
	return nil
}

func (s *MemStore) GetAuth() (*Identity, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return nil, ""
	}
	if s.user == nil {
		return nil, s.token
	}
	user := *s.user
	return &user, s.token
}

func (s *MemStore) ClearAuth() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	return nil
}

func (s *MemStore) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}
