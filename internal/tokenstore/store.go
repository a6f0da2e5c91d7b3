package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rx3lixir/corrector-client/internal/config"
	"github.com/rx3lixir/corrector-client/internal/models"
)

// Фиксированные ключи хранилища
const (
	AccessTokenKey = "access_token"
	UserProfileKey = "user_profile"
)

// ErrNotFound возвращается бэкендами, когда ключ отсутствует
var ErrNotFound = errors.New("key not found")

// Store определяет интерфейс хранилища токена и кэша профиля.
// Все операции синхронные, срок жизни токена не отслеживается:
// о протухшем токене клиент узнает только по ответу 401.
type Store interface {
	Token() (string, bool)
	SetToken(token string) error
	Profile() (*models.UserProfile, bool)
	SetProfile(profile *models.UserProfile) error
	// Clear удаляет и токен, и профиль
	Clear() error
	Close() error
}

// Open создает хранилище по параметрам конфигурации
func Open(ctx context.Context, params config.StoreParams) (Store, error) {
	switch params.Backend {
	case "file":
		return NewFileStore(params.Path)
	case "redis":
		return NewRedisStore(ctx, params.RedisURL(), params.KeyPrefix)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store backend %q", params.Backend)
	}
}
