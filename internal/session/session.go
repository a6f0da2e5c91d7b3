// Package session текущий пользователь: вход, регистрация, выход.
package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rx3lixir/corrector-client/internal/apiclient"
	"github.com/rx3lixir/corrector-client/internal/logger"
	"github.com/rx3lixir/corrector-client/internal/models"
	"github.com/rx3lixir/corrector-client/internal/tokenstore"
)

// API эндпоинты авторизации. *apiclient.Client ему удовлетворяет
type API interface {
	Login(ctx context.Context, username, password string) (*models.TokenResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error)
	Me(ctx context.Context) (*models.UserProfile, error)
}

// Session создается один раз при старте и передается тем, кому нужен пользователь
type Session struct {
	api      API
	store    tokenstore.Store
	observer *Observer
	validate *validator.Validate
	log      logger.Logger
}

type Option func(*Session)

func WithLogger(log logger.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithObserver взводит наблюдателя 401 после каждого успешного входа
func WithObserver(o *Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

func New(api API, store tokenstore.Store, opts ...Option) *Session {
	v := validator.New()
	// В сообщениях об ошибках поля называются так же, как в JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	s := &Session{
		api:      api,
		store:    store,
		validate: v,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login отправляет учетные данные, сохраняет токен и кэширует профиль.
// Отказ сервера приходит как *apiclient.AuthError
func (s *Session) Login(ctx context.Context, username, password string) (*models.UserProfile, error) {
	if err := s.validateInput(models.LoginRequest{Username: username, Password: password}); err != nil {
		return nil, err
	}

	res, err := s.api.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if res == nil || res.AccessToken == "" {
		return nil, &apiclient.ProtocolError{Op: "login", Field: "access_token"}
	}

	if err := s.store.SetToken(res.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	s.loggedIn()

	s.log.Info("logged in", "username", username)
	return s.refreshProfile(ctx)
}

// Register регистрирует пользователя. Токен сохраняется, если сервер его вернул;
// профиль запрашивается в любом случае
func (s *Session) Register(ctx context.Context, req models.RegisterRequest) (*models.UserProfile, error) {
	if err := s.validateInput(req); err != nil {
		return nil, err
	}

	res, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	if res != nil && res.AccessToken != "" {
		if err := s.store.SetToken(res.AccessToken); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
		s.loggedIn()
	}

	s.log.Info("registered", "login", req.Login)
	return s.refreshProfile(ctx)
}

// Logout очищает токен и профиль. Сервер не вызывается
func (s *Session) Logout() error {
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.log.Info("logged out")
	return nil
}

// CurrentUser кэшированный профиль, иначе профиль из payload токена, иначе nil.
// Сеть не используется
func (s *Session) CurrentUser() *models.UserProfile {
	if p, ok := s.store.Profile(); ok {
		return p
	}
	token, ok := s.store.Token()
	if !ok {
		return nil
	}
	if p, ok := ProfileFromToken(token); ok {
		return p
	}
	return nil
}

// IsAuthenticated только наличие токена. Действительность проверит следующий запрос
func (s *Session) IsAuthenticated() bool {
	_, ok := s.store.Token()
	return ok
}

// Refresh заново запрашивает профиль и перезаписывает кэш целиком
func (s *Session) Refresh(ctx context.Context) (*models.UserProfile, error) {
	return s.refreshProfile(ctx)
}

func (s *Session) refreshProfile(ctx context.Context) (*models.UserProfile, error) {
	profile, err := s.api.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if profile == nil {
		return nil, &apiclient.ProtocolError{Op: "me", Field: "user_id"}
	}
	if err := s.store.SetProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to cache profile: %w", err)
	}
	return profile, nil
}

func (s *Session) loggedIn() {
	if s.observer != nil {
		s.observer.Rearm()
	}
}

// validateInput переводит ошибки validator в локальную *apiclient.ValidationError
func (s *Session) validateInput(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid input: %w", err)
	}

	fields := make([]apiclient.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apiclient.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Type:    fe.Tag(),
		})
	}
	return &apiclient.ValidationError{Fields: fields, Local: true}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Обязательное поле"
	case "min":
		return "Минимальная длина: " + fe.Param()
	default:
		return "Некорректное значение"
	}
}
