package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rx3lixir/corrector-client/internal/models"
)

const redisOpTimeout = 3 * time.Second

// RedisStore хранит токен и профиль в Redis под префиксом.
// Удобно, когда одной сессией пользуются несколько процессов или хостов
type RedisStore struct {
	client *redis.Client
	prefix string
	ctx    context.Context
}

// NewRedisStore создает новое хранилище Redis и проверяет соединение
func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return newRedisStore(ctx, redis.NewClient(opts), prefix)
}

func newRedisStore(ctx context.Context, client *redis.Client, prefix string) (*RedisStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	// Проверка соединения с Redis
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ctx:    ctx,
	}, nil
}

// Client отдает клиент Redis для проверок здоровья
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, redisOpTimeout)
}

func (s *RedisStore) Token() (string, bool) {
	token, err := s.get(AccessTokenKey)
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

// SetToken сохраняет токен без TTL: срок жизни контролирует сервер
func (s *RedisStore) SetToken(token string) error {
	ctx, cancel := s.opContext()
	defer cancel()

	if err := s.client.Set(ctx, s.key(AccessTokenKey), token, 0).Err(); err != nil {
		return fmt.Errorf("failed to save token to Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Profile() (*models.UserProfile, bool) {
	data, err := s.get(UserProfileKey)
	if err != nil {
		return nil, false
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, false
	}
	return &profile, true
}

func (s *RedisStore) SetProfile(profile *models.UserProfile) error {
	ctx, cancel := s.opContext()
	defer cancel()

	if profile == nil {
		if err := s.client.Del(ctx, s.key(UserProfileKey)).Err(); err != nil {
			return fmt.Errorf("failed to delete profile from Redis: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := s.client.Set(ctx, s.key(UserProfileKey), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save profile to Redis: %w", err)
	}
	return nil
}

// Clear удаляет оба ключа одной командой
func (s *RedisStore) Clear() error {
	ctx, cancel := s.opContext()
	defer cancel()

	if err := s.client.Del(ctx, s.key(AccessTokenKey), s.key(UserProfileKey)).Err(); err != nil {
		return fmt.Errorf("failed to clear session in Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) get(name string) (string, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	value, err := s.client.Get(ctx, s.key(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get %s from Redis: %w", name, err)
	}
	return value, nil
}
