package checkresult

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/rx3lixir/corrector-client/internal/models"
)

// storagePrefix префикс "<unix-время>_<hex>_", который сервер дописывает к имени файла
var storagePrefix = regexp.MustCompile(`^\d+_[0-9a-fA-F]+_`)

// Normalize строит CheckResult из сырого ответа сервера.
//
// Правила разбора:
//   - имя документа: filename, иначе document_name; префикс хранилища срезается,
//     пустое имя заменяется на Placeholder;
//   - оценка: число или строка с ведущими нулями ("007"); нечисловое значение дает 0,
//     результат зажимается в [0, MaxScore];
//   - статус: как прислал сервер, пустой означает StatusProcessing;
//   - проверка завершена, если статус не из "в процессе", оценка есть
//     и ее строковая форма не состоит из одних нулей;
//   - замечания: сначала errors, потом warnings, порядок сервера сохраняется;
//   - время анализа: analysis_time как есть, иначе analysis_time_ms в секундах, иначе "-";
//   - рекомендация: от сервера, иначе по порогам оценки.
//
// raw == nil дает незавершенный результат с заглушками.
func Normalize(raw *models.RawCheckResult) CheckResult {
	if raw == nil {
		raw = &models.RawCheckResult{}
	}

	rawScore, present := ParseScore(raw.Score)
	score := ClampScore(rawScore)
	status := normalizeStatus(raw.Status)

	res := CheckResult{
		CheckID:         raw.CheckID,
		DocumentID:      raw.DocumentID,
		DocumentName:    CleanDocumentName(firstNonEmpty(raw.Filename, raw.DocumentName)),
		RawScore:        rawScore,
		NormalizedScore: score,
		Percent:         Percent(score),
		ScorePresent:    present,
		Status:          status,
		AnalysisTime:    analysisTime(raw.AnalysisTime, raw.AnalysisTimeMs),
		PagesChecked:    displayValue(raw.PagesChecked),
		Accuracy:        displayValue(raw.Accuracy),
		IsCompliant:     raw.IsCompliant,
	}

	res.IsTerminal = !IsInProgress(status) && present && !isAllZeros(raw.Score)

	res.Issues = make([]IssueRow, 0, len(raw.Errors)+len(raw.Warnings))
	for _, item := range raw.Errors {
		res.Issues = append(res.Issues, issueRow(item, IssueError, PriorityCritical))
	}
	for _, item := range raw.Warnings {
		res.Issues = append(res.Issues, issueRow(item, IssueWarning, PriorityMedium))
	}

	res.CriticalCount = count(len(raw.Errors), raw.CriticalCount, raw.TotalErrors)
	res.WarningCount = count(len(raw.Warnings), raw.WarningCount, raw.TotalWarnings)

	if raw.Recommendation != nil && strings.TrimSpace(*raw.Recommendation) != "" {
		res.Recommendation = *raw.Recommendation
	} else {
		res.Recommendation = RecommendationFor(score)
	}

	if raw.CheckedAt != nil {
		res.CheckedAt = *raw.CheckedAt
	}

	return res
}

// ParseScore разбирает оценку. present сообщает, прислал ли ее сервер вообще.
// Нечисловые значения, NaN и бесконечности дают 0
func ParseScore(v any) (score float64, present bool) {
	switch s := v.(type) {
	case nil:
		return 0, false
	case bool:
		return 0, true
	case string:
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		s = strings.TrimLeft(s, "0")
		if s == "" {
			return 0, true
		}
		return finite(cast.ToFloat64E(s)), true
	default:
		return finite(cast.ToFloat64E(v)), true
	}
}

func finite(f float64, err error) float64 {
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ClampScore зажимает оценку в [0, MaxScore]
func ClampScore(score float64) float64 {
	return math.Min(math.Max(score, 0), MaxScore)
}

// Percent доля от максимальной оценки в процентах, округленная
func Percent(score float64) int {
	return int(math.Round(score / MaxScore * 100))
}

// RecommendationFor текст рекомендации по нормализованной оценке
func RecommendationFor(score float64) string {
	switch {
	case score >= goodThreshold:
		return RecommendationGood
	case score >= reviewThreshold:
		return RecommendationReview
	default:
		return RecommendationMustFix
	}
}

// CleanDocumentName срезает префикс хранилища. Пустое имя заменяется на Placeholder
func CleanDocumentName(name string) string {
	name = strings.TrimSpace(storagePrefix.ReplaceAllString(strings.TrimSpace(name), ""))
	if name == "" {
		return Placeholder
	}
	return name
}

// IsInProgress сообщает, что статус означает идущую проверку
func IsInProgress(status string) bool {
	return status == StatusAnalyzing || status == StatusProcessing
}

func normalizeStatus(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return StatusProcessing
	}
	return strings.TrimSpace(*s)
}

// isAllZeros: "0", "0.0", "000" и число 0 сервер присылает, пока оценки еще нет
func isAllZeros(v any) bool {
	var s string
	switch t := v.(type) {
	case nil:
		return false
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = cast.ToString(v)
	}
	return strings.ContainsRune(s, '0') && strings.Trim(s, "0.") == ""
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return *v
		}
	}
	return ""
}

func analysisTime(verbatim, ms any) string {
	if s := strings.TrimSpace(cast.ToString(verbatim)); s != "" {
		return s
	}
	if ms != nil {
		if v, err := cast.ToFloat64E(ms); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return fmt.Sprintf("%.1f сек", v/1000)
		}
	}
	return NotAvailable
}

// displayValue пустые значения, ноль и false показываются как "-"
func displayValue(v any) string {
	switch t := v.(type) {
	case nil:
		return NotAvailable
	case bool:
		if !t {
			return NotAvailable
		}
	case float64:
		if t == 0 {
			return NotAvailable
		}
	}
	s := strings.TrimSpace(cast.ToString(v))
	if s == "" {
		return NotAvailable
	}
	return s
}

// issueRow элемент errors/warnings: строка или объект {category, description, page}
func issueRow(item any, t IssueType, p Priority) IssueRow {
	row := IssueRow{Type: t, Priority: p, Category: DefaultCategory, Page: NotAvailable}

	m, ok := item.(map[string]any)
	if !ok {
		row.Description = cast.ToString(item)
		return row
	}

	if c := strings.TrimSpace(cast.ToString(m["category"])); c != "" {
		row.Category = c
	}
	for _, key := range []string{"description", "message", "msg", "text"} {
		if d := cast.ToString(m[key]); d != "" {
			row.Description = d
			break
		}
	}
	if page := displayValue(m["page"]); page != NotAvailable {
		row.Page = page
	}
	return row
}

// count берет первый разбираемый счетчик сервера, иначе длину списка
func count(fallback int, candidates ...any) int {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if n, err := cast.ToIntE(c); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
