// Command fakeapi запускает заглушку API корректора для локальной разработки CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rx3lixir/corrector-client/internal/fakeapi"
	"github.com/rx3lixir/corrector-client/internal/logger"
	"github.com/rx3lixir/corrector-client/internal/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		address    string
		readyAfter int
		login      string
		password   string
		admin      bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "fakeapi",
		Short: "Заглушка API «Электронного корректора»",
		Long: `Отвечает на /token, /register, /me, /upload и /gost-check/* так же, как
настоящий сервер, но хранит все в памяти. Первые --ready-after запросов
результата возвращают статус "Анализируется".`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New("dev", logLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			opts := []fakeapi.Option{fakeapi.WithReadyAfter(readyAfter), fakeapi.WithLogger(log)}
			if login != "" {
				role := models.RoleUser
				if admin {
					role = models.RoleAdmin
				}
				opts = append(opts, fakeapi.WithUser(login, password, models.UserProfile{Role: role}))
			}

			server := &http.Server{
				Addr:              address,
				Handler:           fakeapi.New(opts...),
				ReadHeaderTimeout: 10 * time.Second,
			}

			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				log.Info("Fake API started", "address", address, "ready_after", readyAfter)
				errCh <- server.ListenAndServe()
			}()

			select {
			case <-signalCh:
				log.Info("Shutting down fake API...")
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("fake api: %w", err)
				}
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("failed to shut down fake api: %w", err)
			}
			log.Info("Fake API stopped gracefully")
			return nil
		},
	}

	cmd.Flags().StringVarP(&address, "addr", "a", ":8020", "адрес прослушивания")
	cmd.Flags().IntVar(&readyAfter, "ready-after", 2, "сколько опросов результата отвечать \"Анализируется\"")
	cmd.Flags().StringVar(&login, "user", "", "заранее созданный пользователь")
	cmd.Flags().StringVar(&password, "password", "password", "пароль заранее созданного пользователя")
	cmd.Flags().BoolVar(&admin, "admin", false, "выдать заранее созданному пользователю роль admin")
	cmd.Flags().StringVar(&logLevel, "log-level", "debug", "уровень логирования")
	return cmd
}
