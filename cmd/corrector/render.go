package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/rx3lixir/corrector-client/internal/checkresult"
	"github.com/rx3lixir/corrector-client/internal/config"
	"github.com/rx3lixir/corrector-client/internal/history"
	"github.com/rx3lixir/corrector-client/internal/models"
	"github.com/rx3lixir/corrector-client/pkg/health"
)

const separator = "────────────────────────────────────────────────────────"

// scoreColor цвет оценки по тем же порогам, что и рекомендация
func scoreColor(score float64) *color.Color {
	switch checkresult.RecommendationFor(score) {
	case checkresult.RecommendationGood:
		return colorGreen
	case checkresult.RecommendationReview:
		return colorYellow
	default:
		return colorRed
	}
}

func renderResult(w io.Writer, res *checkresult.CheckResult) {
	fmt.Fprintln(w, separator)
	colorBold.Fprintf(w, "📄 %s\n", res.DocumentName)
	fmt.Fprintf(w, "   Проверка: %s   Документ: %s\n", res.CheckID, orDash(res.DocumentID.String()))
	fmt.Fprintln(w, separator)

	if !res.IsTerminal {
		colorYellow.Fprintf(w, "⏳ Статус: %s\n", res.Status)
		return
	}

	fmt.Fprintf(w, "Статус:        %s\n", res.Status)
	fmt.Fprint(w, "Оценка:        ")
	scoreColor(res.NormalizedScore).Fprintf(w, "%.1f / %.0f (%d%%)\n", res.NormalizedScore, checkresult.MaxScore, res.Percent)
	fmt.Fprintf(w, "Рекомендация:  %s\n", res.Recommendation)
	if res.IsCompliant != nil {
		if *res.IsCompliant {
			colorGreen.Fprintln(w, "Соответствие:  ✅ соответствует")
		} else {
			colorRed.Fprintln(w, "Соответствие:  ❌ не соответствует")
		}
	}
	fmt.Fprintf(w, "Время анализа: %s\n", res.AnalysisTime)
	fmt.Fprintf(w, "Страниц:       %s\n", res.PagesChecked)
	fmt.Fprintf(w, "Точность:      %s\n", res.Accuracy)
	if res.CheckedAt != "" {
		fmt.Fprintf(w, "Проверено:     %s\n", res.CheckedAt)
	}
	fmt.Fprintln(w, separator)

	fmt.Fprint(w, "Ошибок: ")
	colorRed.Fprintf(w, "%d", res.CriticalCount)
	fmt.Fprint(w, "   Замечаний: ")
	colorYellow.Fprintf(w, "%d\n", res.WarningCount)

	if len(res.Issues) == 0 {
		colorGreen.Fprintln(w, "🎉 Замечаний нет")
		return
	}

	renderIssues(w, colorRed, "Ошибки", res.Errors())
	renderIssues(w, colorYellow, "Замечания", res.Warnings())
}

func renderIssues(w io.Writer, c *color.Color, title string, rows []checkresult.IssueRow) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintln(w)
	c.Fprintln(w, title)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "КАТЕГОРИЯ\tСТР.\tПРИОРИТЕТ\tОПИСАНИЕ")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Category, row.Page, row.Priority, row.Description)
	}
	tw.Flush()
}

func renderProfile(w io.Writer, p *models.UserProfile, tg config.TelegramParams) {
	colorBold.Fprintf(w, "👤 %s\n", p.DisplayName())
	fmt.Fprintf(w, "   Логин: %s\n", p.Email)
	if full := fullName(p); full != "" {
		fmt.Fprintf(w, "   ФИО:   %s\n", full)
	}
	role := "пользователь"
	if p.IsAdmin() {
		role = "администратор"
	}
	fmt.Fprintf(w, "   Роль:  %s\n", role)
	if p.FromToken {
		colorYellow.Fprintln(w, "   (профиль восстановлен из токена, данные могут быть неполными)")
	}

	fmt.Fprintln(w)
	colorCyan.Fprintln(w, "Telegram")
	switch {
	case p.TgUsername != nil && *p.TgUsername != "":
		subscribed := "не подписан на уведомления"
		if p.IsTgSubscribed != nil && *p.IsTgSubscribed {
			subscribed = "подписан на уведомления"
		}
		fmt.Fprintf(w, "   @%s, %s\n", strings.TrimPrefix(*p.TgUsername, "@"), subscribed)
	default:
		fmt.Fprintln(w, "   аккаунт не привязан")
	}
	if tg.BotUsername != "" {
		fmt.Fprintf(w, "   Бот:   https://t.me/%s\n", strings.TrimPrefix(tg.BotUsername, "@"))
	}
	if tg.ChannelURL != "" {
		fmt.Fprintf(w, "   Канал: %s\n", tg.ChannelURL)
	}
}

func fullName(p *models.UserProfile) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.SurnameName, p.FirstName, p.PatronomicName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func renderStatus(w io.Writer, s *models.CheckStatus) {
	fmt.Fprintf(w, "Документ %s: ", s.DocumentID)
	colorCyan.Fprintf(w, "%s", s.Status)
	fmt.Fprintf(w, " [%s] %d%%", progressBar(s.Progress, 20), s.Progress)
	if s.EstimatedTimeRemaining != nil && *s.EstimatedTimeRemaining > 0 {
		fmt.Fprintf(w, ", осталось ~%d сек", *s.EstimatedTimeRemaining)
	}
	fmt.Fprintln(w)
}

func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func renderHistory(w io.Writer, records []history.CheckRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "История пуста")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ПРОВЕРКА\tФАЙЛ\tОТПРАВЛЕН\tСТАТУС\tОЦЕНКА\tОШИБОК\tЗАМЕЧАНИЙ")
	for _, r := range records {
		score := checkresult.NotAvailable
		if r.Score != nil {
			score = fmt.Sprintf("%.1f", *r.Score)
		}
		name := r.DocumentName
		if name == "" {
			name = r.FileName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			r.CheckID,
			name,
			r.SubmittedAt.Local().Format("02.01.2006 15:04"),
			orDash(r.Status),
			score,
			r.Errors,
			r.Warnings,
		)
	}
	tw.Flush()
}

func renderRecord(w io.Writer, r *history.CheckRecord) {
	name := r.DocumentName
	if name == "" {
		name = r.FileName
	}
	colorBold.Fprintf(w, "📄 %s\n", orDash(name))
	fmt.Fprintf(w, "Проверка:      %s\n", r.CheckID)
	fmt.Fprintf(w, "Документ:      %s\n", orDash(r.DocumentID))
	fmt.Fprintf(w, "Тип:           %s\n", orDash(r.CheckType))
	fmt.Fprintf(w, "Отправлен:     %s\n", r.SubmittedAt.Local().Format("02.01.2006 15:04"))
	fmt.Fprintf(w, "Статус:        %s\n", orDash(r.Status))
	if r.Score != nil {
		fmt.Fprint(w, "Оценка:        ")
		percent := checkresult.Percent(*r.Score)
		if r.Percent != nil {
			percent = *r.Percent
		}
		scoreColor(*r.Score).Fprintf(w, "%.1f / %.0f (%d%%)\n", *r.Score, checkresult.MaxScore, percent)
	}
	if r.Recommendation != "" {
		fmt.Fprintf(w, "Рекомендация:  %s\n", r.Recommendation)
	}
	fmt.Fprintf(w, "Ошибок: %d   Замечаний: %d\n", r.Errors, r.Warnings)
	if r.FinishedAt != nil {
		fmt.Fprintf(w, "Завершена:     %s\n", r.FinishedAt.Local().Format("02.01.2006 15:04"))
	} else if !r.Terminal {
		colorYellow.Fprintf(w, "Итог еще не получен: %s result %s\n", appName, r.CheckID)
	}
}

func renderHealth(w io.Writer, report health.Report) {
	for _, name := range report.Names() {
		res := report.Checks[name]
		if res.Status == health.StatusUp {
			colorGreen.Fprintf(w, "✅ %-12s", name)
		} else {
			colorRed.Fprintf(w, "❌ %-12s", name)
		}
		if res.Error != "" {
			fmt.Fprintf(w, " %s", res.Error)
		}
		if d, ok := res.Details["duration_ms"]; ok {
			colorMagenta.Fprintf(w, " (%v ms)", d)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Итог: %s\n", report.Status)
}

func orDash(s string) string {
	if s == "" {
		return checkresult.NotAvailable
	}
	return s
}
