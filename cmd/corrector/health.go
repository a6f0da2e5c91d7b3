package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rx3lixir/corrector-client/internal/tokenstore"
	"github.com/rx3lixir/corrector-client/pkg/health"
)

// maxHeapBytes порог MemoryChecker для долгоживущего --serve
const maxHeapBytes = 512 << 20

func newHealthCmd() *cobra.Command {
	var (
		serve    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Проверить доступность API и хранилищ",
		Long: `Проверяет API, хранилище токена и историю. С --serve остается запущенным
и отдает состояние по протоколу grpc.health.v1 на health_params.address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			srv := a.healthServer(interval)
			if serve {
				return a.serveHealth(srv)
			}

			report := srv.Check(cmd.Context())
			renderHealth(cmd.OutOrStdout(), report)
			if report.Status != health.StatusUp {
				return errors.New("есть недоступные зависимости")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&serve, "serve", false, "запустить gRPC health-сервер")
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Second, "период проверок для --serve")
	return cmd
}

func (a *app) healthServer(interval time.Duration) *health.Server {
	opts := []health.Option{
		health.WithServiceName("corrector"),
		health.WithVersion(version),
		health.WithAddress(a.cfg.Health.Address),
		health.WithTimeout(5 * time.Second),
		health.WithInterval(interval),
		health.WithChecker("api", health.PingChecker(a.client, map[string]any{"base_url": a.client.BaseURL()})),
		health.WithChecker("memory", health.MemoryChecker(maxHeapBytes)),
	}

	if rs, ok := a.store.(*tokenstore.RedisStore); ok {
		opts = append(opts, health.WithChecker("token_store", health.RedisChecker(rs.Client())))
	}
	if a.history != nil {
		opts = append(opts, health.WithChecker("history", health.PingChecker(a.history, nil)))
	}

	return health.NewServer(a.log, opts...)
}

// serveHealth держит сервер до сигнала остановки или ошибки
func (a *app) serveHealth(srv *health.Server) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	select {
	case <-signalCh:
		a.log.Info("Shutting down gracefully...")
	case serveErr = <-errCh:
		if serveErr != nil {
			a.log.Error("Health server error", "error", serveErr)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.log.Error("Health server shutdown error", "error", err)
	}

	a.log.Info("Health server stopped")
	return serveErr
}
