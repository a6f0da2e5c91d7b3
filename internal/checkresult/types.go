// Package checkresult единственное место, где сырой ответ
// GET /gost-check/result/{check_id} превращается в CheckResult.
package checkresult

import "github.com/rx3lixir/corrector-client/internal/models"

// Статусы, означающие, что проверка еще идет
const (
	StatusAnalyzing  = "Анализируется"
	StatusProcessing = "processing"
)

// Placeholder показывается вместо пустого имени документа
const Placeholder = "Документ"

// NotAvailable показывается вместо отсутствующих значений
const NotAvailable = "-"

// MaxScore верхняя граница шкалы оценки
const MaxScore = 10.0

// IssueType вид замечания в отчете
type IssueType string

const (
	IssueError   IssueType = "Ошибка"
	IssueWarning IssueType = "Замечание"
)

// Priority приоритет замечания
type Priority string

const (
	PriorityCritical Priority = "Критично"
	PriorityMedium   Priority = "Средний"
)

// DefaultCategory категория для замечаний, присланных строкой
const DefaultCategory = "Общее"

// Тексты рекомендации, если сервер ее не прислал
const (
	RecommendationGood    = "Хорошо"
	RecommendationReview  = "Требует внимания"
	RecommendationMustFix = "Необходимо исправить"
	goodThreshold         = 8.0
	reviewThreshold       = 5.0
)

// IssueRow одна строка таблицы замечаний
type IssueRow struct {
	Type        IssueType `json:"type"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Page        string    `json:"page"`
	Priority    Priority  `json:"priority"`
}

// CheckResult нормализованный результат проверки для показа
type CheckResult struct {
	CheckID      models.ID `json:"check_id,omitempty"`
	DocumentID   models.ID `json:"document_id,omitempty"`
	DocumentName string    `json:"document_name"`

	// RawScore разобранная оценка как есть, может выходить за шкалу
	RawScore        float64 `json:"raw_score"`
	NormalizedScore float64 `json:"normalized_score"`
	Percent         int     `json:"percent"`
	// ScorePresent сервер прислал оценку
	ScorePresent bool `json:"score_present"`

	Status     string `json:"status"`
	IsTerminal bool   `json:"is_terminal"`

	Issues        []IssueRow `json:"issues"`
	CriticalCount int        `json:"critical_count"`
	WarningCount  int        `json:"warning_count"`

	AnalysisTime   string `json:"analysis_time"`
	PagesChecked   string `json:"pages_checked"`
	Accuracy       string `json:"accuracy"`
	Recommendation string `json:"recommendation"`

	IsCompliant *bool  `json:"is_compliant,omitempty"`
	CheckedAt   string `json:"checked_at,omitempty"`
}

// Errors замечания с типом "Ошибка"
func (r *CheckResult) Errors() []IssueRow {
	return r.filter(IssueError)
}

// Warnings замечания с типом "Замечание"
func (r *CheckResult) Warnings() []IssueRow {
	return r.filter(IssueWarning)
}

func (r *CheckResult) filter(t IssueType) []IssueRow {
	var out []IssueRow
	for _, row := range r.Issues {
		if row.Type == t {
			out = append(out, row)
		}
	}
	return out
}
