package tokenstore

import (
	"sync"

	"github.com/rx3lixir/corrector-client/internal/models"
)

// MemoryStore хранит токен в памяти процесса
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	profile *models.UserProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *MemoryStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Profile() (*models.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil, false
	}
	p := *s.profile
	return &p, true
}

func (s *MemoryStore) SetProfile(profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile == nil {
		s.profile = nil
		return nil
	}
	p := *profile
	s.profile = &p
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.profile = nil
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
