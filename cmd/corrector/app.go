package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rx3lixir/corrector-client/internal/apiclient"
	"github.com/rx3lixir/corrector-client/internal/config"
	"github.com/rx3lixir/corrector-client/internal/guard"
	"github.com/rx3lixir/corrector-client/internal/history"
	"github.com/rx3lixir/corrector-client/internal/logger"
	"github.com/rx3lixir/corrector-client/internal/poller"
	"github.com/rx3lixir/corrector-client/internal/session"
	"github.com/rx3lixir/corrector-client/internal/submission"
	"github.com/rx3lixir/corrector-client/internal/tokenstore"
)

// app все зависимости одного запуска CLI
type app struct {
	cfg      *config.AppConfig
	log      logger.Logger
	store    tokenstore.Store
	observer *session.Observer
	client   *apiclient.Client
	session  *session.Session
	guard    *guard.Guard
	flow     *submission.Flow
	poller   *poller.Poller
	history  *history.Store
}

// newApp собирает клиент из конфигурации. Вызывающий обязан вызвать close
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Service.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log, err := logger.New(cfg.Service.Env, level)
	if err != nil {
		return nil, err
	}

	log.Debug("Configuration loaded",
		"env", cfg.Service.Env,
		"api_base_url", cfg.API.BaseURL,
		"token_store", cfg.Store.Backend,
		"history", cfg.History.Enabled,
	)

	store, err := tokenstore.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	a := &app{cfg: cfg, log: log, store: store}

	a.observer = session.NewObserver(store, session.NavigatorFunc(redirectToLogin), log)

	a.client, err = apiclient.New(cfg.API.BaseURL, store,
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
		apiclient.WithUserAgent(appName+"/"+version),
		apiclient.WithLogger(log),
		apiclient.WithUnauthorizedHandler(a.observer.HandleUnauthorized),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	a.session = session.New(a.client, store, session.WithLogger(log), session.WithObserver(a.observer))
	a.guard = guard.New(a.session)

	flowOpts := []submission.Option{submission.WithLogger(log)}
	if cfg.History.Enabled {
		a.history, err = history.Open(cfg.History.Path, log)
		if err != nil {
			// история вспомогательная, без нее проверка все равно работает
			log.Warn("History is unavailable", "path", cfg.History.Path, "error", err)
		} else {
			flowOpts = append(flowOpts, submission.WithRecorder(a.history))
		}
	}
	a.flow = submission.New(a.client, cfg.Upload.MaxUploadBytes(), flowOpts...)
	a.poller = poller.New(a.client, cfg.Poll, poller.WithLogger(log))

	return a, nil
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("Failed to close history", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close token store", "error", err)
	}
	_ = a.log.Sync()
}

// require пропускает команду только для вошедшего пользователя
func (a *app) require(path string) error {
	return a.guard.Require(path)
}

// redirectToLogin навигация на экран входа для CLI: подсказка в stderr
func redirectToLogin(from string) {
	colorYellow.Fprintf(os.Stderr, "Сессия истекла (%s). Выполните: %s login\n", from, appName)
}

// describeError текст ошибки для пользователя. RedirectError и ошибки
// apiclient отдают свой Message, остальные печатаются как есть
func describeError(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Прервано"
	}
	return apiclient.UserMessage(err)
}

// commandFor подсказка, куда идти после входа
func commandFor(path string) string {
	switch path {
	case guard.ProfilePath:
		return appName + " whoami"
	default:
		return appName + " check <файл>"
	}
}
