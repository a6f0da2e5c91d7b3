package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rx3lixir/corrector-client/internal/checkresult"
	"github.com/rx3lixir/corrector-client/internal/guard"
	"github.com/rx3lixir/corrector-client/internal/history"
	"github.com/rx3lixir/corrector-client/internal/models"
	"github.com/rx3lixir/corrector-client/internal/poller"
	"github.com/rx3lixir/corrector-client/internal/submission"
)

func checkTypesUsage() string {
	names := make([]string, 0, len(models.CheckTypes))
	for _, t := range models.CheckTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func newCheckCmd() *cobra.Command {
	var (
		checkType string
		noWait    bool
	)

	cmd := &cobra.Command{
		Use:   "check <файл>",
		Short: "Отправить документ на проверку",
		Long: `Загружает документ (PDF, DOC, DOCX) и запускает проверку. По умолчанию
ждет результат, опрашивая сервер; --no-wait только печатает номер проверки.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.require(guard.CheckPath); err != nil {
				return err
			}

			file, err := submission.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			out := cmd.OutOrStdout()
			colorCyan.Fprintf(out, "📁 %s\n", file.Name)

			sub, err := a.flow.Submit(cmd.Context(), file, models.CheckType(checkType))
			if err != nil {
				return err
			}
			colorGreen.Fprintf(out, "✅ Документ %s отправлен, проверка %s\n", sub.DocumentID, sub.CheckID)

			if noWait {
				fmt.Fprintf(out, "Результат: %s result %s\n", appName, sub.CheckID)
				return nil
			}
			return a.waitResult(cmd.Context(), out, sub.CheckID)
		},
	}

	cmd.Flags().StringVarP(&checkType, "type", "t", string(models.CheckTypeGOST), "тип проверки: "+checkTypesUsage())
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "не ждать результата")
	return cmd
}

func newResultCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "result <check_id>",
		Short: "Показать результат проверки",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.require(guard.CheckPath); err != nil {
				return err
			}

			checkID := models.ID(args[0])
			if wait {
				return a.waitResult(cmd.Context(), cmd.OutOrStdout(), checkID)
			}

			raw, err := a.client.CheckResult(cmd.Context(), checkID)
			if err != nil {
				return err
			}
			res := checkresult.Normalize(raw)
			if res.CheckID.IsZero() {
				res.CheckID = checkID
			}
			a.recordResult(cmd.Context(), res)
			renderResult(cmd.OutOrStdout(), &res)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "ждать окончания проверки")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <document_id>",
		Short: "Показать статус обработки документа",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.require(guard.CheckPath); err != nil {
				return err
			}

			status, err := a.client.CheckStatus(cmd.Context(), models.ID(args[0]))
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [check_id]",
		Short: "Показать последние проверки с этого компьютера",
		Long: `Без аргументов печатает последние проверки. С номером проверки показывает
сохраненную запись о ней без запроса к серверу.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if a.history == nil {
				return errors.New("история отключена: history_params.enabled = false")
			}

			if len(args) == 1 {
				rec, err := a.history.Get(cmd.Context(), models.ID(args[0]))
				if errors.Is(err, history.ErrNotFound) {
					return fmt.Errorf("проверки %s нет в истории", args[0])
				}
				if err != nil {
					return err
				}
				renderRecord(cmd.OutOrStdout(), rec)
				return nil
			}

			records, err := a.history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "сколько записей показать")
	return cmd
}

// waitResult опрашивает результат до финального статуса и печатает отчет
func (a *app) waitResult(ctx context.Context, out io.Writer, checkID models.ID) error {
	colorYellow.Fprintf(out, "⏳ Ожидание результата проверки %s (Ctrl+C прервет ожидание)\n", checkID)

	res, err := a.poller.Wait(ctx, checkID, func(u poller.Update) {
		switch {
		case u.Pending:
			fmt.Fprintf(out, "   [%d] результат еще не создан\n", u.Attempt)
		case u.Result != nil && !u.Result.IsTerminal:
			fmt.Fprintf(out, "   [%d] %s\n", u.Attempt, u.Result.Status)
		}
	})
	if res != nil {
		if res.CheckID.IsZero() {
			res.CheckID = checkID
		}
		a.recordResult(ctx, *res)
	}
	if err != nil {
		if errors.Is(err, poller.ErrMaxAttempts) {
			fmt.Fprintf(out, "Проверка идет дольше обычного. Позже: %s result %s\n", appName, checkID)
		}
		return err
	}

	renderResult(out, res)
	return nil
}

func (a *app) recordResult(ctx context.Context, res checkresult.CheckResult) {
	if a.history == nil {
		return
	}
	// после Ctrl+C запись все равно должна дойти до базы
	if err := a.history.RecordResult(context.WithoutCancel(ctx), res); err != nil {
		a.log.Warn("Failed to record result", "check_id", res.CheckID.String(), "error", err)
	}
}
