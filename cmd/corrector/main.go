// Command corrector консольный клиент «Электронного корректора»: вход,
// отправка документа на проверку и просмотр результата.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	appName = "corrector"

	// Общие флаги
	configPath string
	logLevel   string

	colorRed     = color.New(color.FgRed, color.Bold)
	colorGreen   = color.New(color.FgGreen, color.Bold)
	colorYellow  = color.New(color.FgYellow)
	colorCyan    = color.New(color.FgCyan)
	colorMagenta = color.New(color.FgMagenta)
	colorBold    = color.New(color.Bold)
)

func main() {
	// Ctrl+C прерывает ожидание результата и освобождает таймер опроса
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		colorRed.Fprintf(os.Stderr, "Ошибка: %s\n", describeError(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Клиент сервиса «Электронный корректор»",
		Long: `Проверка оформления документов (PDF, DOC, DOCX) на соответствие ГОСТ.

Примеры:
  # войти и проверить документ
  corrector login --username ivan@example.com
  corrector check report.pdf --type gost

  # отправить без ожидания и забрать результат позже
  corrector check report.docx --no-wait
  corrector result 42
`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "путь к файлу конфигурации (по умолчанию ./config.yaml или ~/.corrector/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "уровень логирования: debug, info, warn, error")

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newCheckCmd(),
		newResultCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newHealthCmd(),
	)
	return root
}
