package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger представляет интерфейс для логирования.
// Аргументы передаются парами ключ-значение: log.Info("msg", "key", value)
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	Sync() error
}

// zapLogger реализует Logger поверх zap.Logger
type zapLogger struct {
	raw *zap.Logger
}

// New создает логгер для переданного окружения.
// env: "prod" - JSON без цветов и стектрейсов, иначе development-конфигурация.
// level: debug, info, warn, error; пустая строка - уровень по умолчанию для окружения
func New(env, level string) (Logger, error) {
	isProd := env == "prod"

	lvl := zapcore.DebugLevel
	if isProd {
		lvl = zapcore.InfoLevel
	}
	if level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		FunctionKey:    zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var encoder zapcore.Encoder
	options := []zap.Option{
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.ErrorOutput(zapcore.AddSync(os.Stderr)),
	}

	if isProd {
		encoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		// В dev-окружении читаемый консольный вывод со стеком с уровня Error
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel), zap.Development())
	}

	// stdout отдан под вывод команд, логи пишем в stderr
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(lvl))

	return &zapLogger{raw: zap.New(core, options...)}, nil
}

// Nop возвращает логгер, который ничего не пишет. Удобен в тестах
func Nop() Logger {
	return &zapLogger{raw: zap.NewNop()}
}

func (l *zapLogger) Debug(msg string, args ...any) {
	l.raw.Debug(msg, argsToFields(args)...)
}

func (l *zapLogger) Info(msg string, args ...any) {
	l.raw.Info(msg, argsToFields(args)...)
}

func (l *zapLogger) Warn(msg string, args ...any) {
	l.raw.Warn(msg, argsToFields(args)...)
}

func (l *zapLogger) Error(msg string, args ...any) {
	l.raw.Error(msg, argsToFields(args)...)
}

// With возвращает дочерний логгер с постоянными полями
func (l *zapLogger) With(args ...any) Logger {
	return &zapLogger{raw: l.raw.With(argsToFields(args)...)}
}

// Sync сбрасывает буферы. Ошибку sync для stderr на linux можно игнорировать
func (l *zapLogger) Sync() error {
	return l.raw.Sync()
}

// argsToFields преобразует аргументы вида [key1, val1, key2, val2...] в поля zap.Field
func argsToFields(args []any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue // пропускаем если ключ не строка
		}

		if i+1 >= len(args) {
			fields = append(fields, zap.String("!BADKEY", key))
			break
		}

		if err, isErr := args[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}
