package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Константы для ключей конфигурации
const (
	envKey              = "service_params.env"
	logLevelKey         = "service_params.log_level"
	apiBaseURLKey       = "api_params.base_url"
	apiTimeoutKey       = "api_params.timeout"
	apiRateLimitKey     = "api_params.rate_limit_rps"
	apiRateBurstKey     = "api_params.rate_limit_burst"
	maxFileSizeKey      = "upload_params.max_file_size_mb"
	pollIntervalKey     = "poll_params.interval"
	pollMaxAttemptsKey  = "poll_params.max_attempts"
	pollMultiplierKey   = "poll_params.backoff_multiplier"
	pollMaxIntervalKey  = "poll_params.max_interval"
	storeBackendKey     = "store_params.backend"
	storePathKey        = "store_params.path"
	storeRedisURLKey    = "store_params.redis_url"
	storeRedisPassKey   = "store_params.redis_password"
	storeKeyPrefixKey   = "store_params.key_prefix"
	historyEnabledKey   = "history_params.enabled"
	historyPathKey      = "history_params.path"
	telegramBotKey      = "telegram_params.bot_username"
	telegramChannelKey  = "telegram_params.channel_url"
	healthAddressKey    = "health_params.address"
	defaultConfigSubdir = ".corrector"
)

// AppConfig представляет конфигурацию всего клиента
type AppConfig struct {
	Service  ServiceParams  `mapstructure:"service_params" validate:"required"`
	API      APIParams      `mapstructure:"api_params" validate:"required"`
	Upload   UploadParams   `mapstructure:"upload_params" validate:"required"`
	Poll     PollParams     `mapstructure:"poll_params" validate:"required"`
	Store    StoreParams    `mapstructure:"store_params" validate:"required"`
	History  HistoryParams  `mapstructure:"history_params"`
	Telegram TelegramParams `mapstructure:"telegram_params"`
	Health   HealthParams   `mapstructure:"health_params"`
}

// ServiceParams содержит общие параметры приложения
type ServiceParams struct {
	Env      string `mapstructure:"env" validate:"required,oneof=dev prod test"`
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// APIParams адрес и ограничения HTTP-клиента
type APIParams struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"required,min=1s"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
}

type UploadParams struct {
	MaxFileSizeMB int `mapstructure:"max_file_size_mb" validate:"required,min=1,max=1024"`
}

// PollParams расписание опроса результата проверки
type PollParams struct {
	Interval          time.Duration `mapstructure:"interval" validate:"required,min=100ms"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"required,min=1"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" validate:"gte=1"`
	MaxInterval       time.Duration `mapstructure:"max_interval" validate:"required,gtefield=Interval"`
}

// StoreParams где хранится токен и кэш профиля
type StoreParams struct {
	Backend       string `mapstructure:"backend" validate:"required,oneof=file redis memory"`
	Path          string `mapstructure:"path" validate:"required_if=Backend file"`
	RedisURLValue string `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	RedisPassword string `mapstructure:"redis_password"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

type HistoryParams struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// TelegramParams только для отображения, клиент с ботом не работает
type TelegramParams struct {
	BotUsername string `mapstructure:"bot_username"`
	ChannelURL  string `mapstructure:"channel_url" validate:"omitempty,url"`
}

type HealthParams struct {
	Address string `mapstructure:"address" validate:"required"`
}

// MaxUploadBytes возвращает максимальный размер загружаемого файла в байтах
func (u *UploadParams) MaxUploadBytes() int64 {
	return int64(u.MaxFileSizeMB) * 1024 * 1024
}

// RedisURL формирует полный URL для подключения к Redis
func (s *StoreParams) RedisURL() string {
	addr := s.RedisURLValue
	hasScheme := strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://")

	if s.RedisPassword != "" {
		// Если URL уже содержит схему, добавляем пароль
		if hasScheme {
			scheme, rest, _ := strings.Cut(addr, "://")
			return fmt.Sprintf("%s://:%s@%s", scheme, s.RedisPassword, rest)
		}
		return fmt.Sprintf("redis://:%s@%s", s.RedisPassword, addr)
	}

	// Если URL уже содержит схему, возвращаем как есть
	if hasScheme {
		return addr
	}
	return "redis://" + addr
}

// IsProduction сообщает, что клиент запущен в prod-окружении
func (c *AppConfig) IsProduction() bool {
	return c.Service.Env == "prod"
}

// envBindings возвращает мапу ключей конфигурации и соответствующих им переменных окружения
func envBindings() map[string]string {
	return map[string]string{
		envKey:             "CORRECTOR_ENV",
		logLevelKey:        "CORRECTOR_LOG_LEVEL",
		apiBaseURLKey:      "API_BASE_URL",
		apiTimeoutKey:      "API_TIMEOUT",
		apiRateLimitKey:    "API_RATE_LIMIT_RPS",
		apiRateBurstKey:    "API_RATE_LIMIT_BURST",
		maxFileSizeKey:     "MAX_FILE_SIZE_MB",
		pollIntervalKey:    "POLL_INTERVAL",
		pollMaxAttemptsKey: "POLL_MAX_ATTEMPTS",
		pollMultiplierKey:  "POLL_BACKOFF_MULTIPLIER",
		pollMaxIntervalKey: "POLL_MAX_INTERVAL",
		storeBackendKey:    "TOKEN_STORE",
		storePathKey:       "TOKEN_STORE_PATH",
		storeRedisURLKey:   "REDIS_URL",
		storeRedisPassKey:  "REDIS_PASSWORD",
		storeKeyPrefixKey:  "TOKEN_STORE_PREFIX",
		historyEnabledKey:  "HISTORY_ENABLED",
		historyPathKey:     "HISTORY_PATH",
		telegramBotKey:     "TELEGRAM_BOT_USERNAME",
		telegramChannelKey: "TELEGRAM_CHANNEL_URL",
		healthAddressKey:   "HEALTH_ADDRESS",
	}
}

// setDefaults значения по умолчанию для всех ключей
func setDefaults(v *viper.Viper, home string) {
	dataDir := filepath.Join(home, defaultConfigSubdir)

	v.SetDefault(envKey, "dev")
	v.SetDefault(logLevelKey, "info")

	v.SetDefault(apiBaseURLKey, "http://localhost:8020")
	v.SetDefault(apiTimeoutKey, "30s")
	v.SetDefault(apiRateLimitKey, 5)
	v.SetDefault(apiRateBurstKey, 10)

	v.SetDefault(maxFileSizeKey, 50)

	// Исходное расписание: фиксированный интервал 3 секунды
	v.SetDefault(pollIntervalKey, "3s")
	v.SetDefault(pollMaxAttemptsKey, 200)
	v.SetDefault(pollMultiplierKey, 1.0)
	v.SetDefault(pollMaxIntervalKey, "30s")

	v.SetDefault(storeBackendKey, "file")
	v.SetDefault(storePathKey, filepath.Join(dataDir, "session.json"))
	v.SetDefault(storeRedisURLKey, "localhost:6379")
	v.SetDefault(storeRedisPassKey, "")
	v.SetDefault(storeKeyPrefixKey, "corrector:")

	v.SetDefault(historyEnabledKey, true)
	v.SetDefault(historyPathKey, filepath.Join(dataDir, "history.db"))

	v.SetDefault(telegramBotKey, "elecrtonic_corrector_bot")
	v.SetDefault(telegramChannelKey, "https://t.me/electronic_corrector")

	v.SetDefault(healthAddressKey, ":8082")
}

// New загружает конфигурацию из .env, файла и переменных окружения.
// configPath может быть пустым: тогда config.yaml ищется в текущей директории
// и в ~/.corrector, а его отсутствие не считается ошибкой
func New(configPath string) (*AppConfig, error) {
	// .env необязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	v := viper.New()
	setDefaults(v, home)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, defaultConfigSubdir))
	}

	// Привязка переменных окружения
	for configKey, envVar := range envBindings() {
		if err := v.BindEnv(configKey, envVar); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", envVar, err)
		}
	}

	// Чтение конфигурации
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate проверяет конфигурацию по тегам validate
func Validate(config *AppConfig) error {
	validate := validator.New()

	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
