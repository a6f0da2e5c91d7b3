package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rx3lixir/corrector-client/internal/models"
)

// FileStore хранит токен и профиль в JSON-файле, аналог localStorage для CLI.
// Файл создается с правами 0600, запись идет через временный файл и rename.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// fileState содержимое файла: те же два ключа, что и в браузерном хранилище
type fileState struct {
	AccessToken string              `json:"access_token,omitempty"`
	UserProfile *models.UserProfile `json:"user_profile,omitempty"`
}

// NewFileStore создает хранилище и директорию под него
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("token store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token store dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path путь к файлу хранилища
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil || state.AccessToken == "" {
		return "", false
	}
	return state.AccessToken, true
}

func (s *FileStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	state.AccessToken = token
	return s.save(state)
}

func (s *FileStore) Profile() (*models.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil || state.UserProfile == nil {
		return nil, false
	}
	return state.UserProfile, true
}

// SetProfile перезаписывает профиль целиком, без слияния полей
func (s *FileStore) SetProfile(profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	state.UserProfile = profile
	return s.save(state)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token store: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// load читает состояние. Отсутствующий файл - пустое состояние.
// Поврежденный файл тоже считается пустым: перезапишется при следующем входе
func (s *FileStore) load() (fileState, error) {
	var state fileState

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return state, fmt.Errorf("failed to read token store: %w", err)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return fileState{}, nil
	}
	return state, nil
}

func (s *FileStore) save(state fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace token store: %w", err)
	}
	return nil
}
