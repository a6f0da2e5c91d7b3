package models

import "time"

// CheckType стандарт, на соответствие которому проверяется документ
type CheckType string

const (
	CheckTypeGOST     CheckType = "gost"
	CheckTypeInternal CheckType = "internal"
	CheckTypeCustom   CheckType = "custom"
)

// CheckTypes закрытый набор допустимых типов проверки
var CheckTypes = []CheckType{CheckTypeGOST, CheckTypeInternal, CheckTypeCustom}

// Valid сообщает, входит ли тип в закрытый набор
func (t CheckType) Valid() bool {
	for _, ct := range CheckTypes {
		if t == ct {
			return true
		}
	}
	return false
}

type UploadResponse struct {
	DocumentID ID `json:"document_id"`
}

type StartCheckRequest struct {
	DocumentID ID        `json:"document_id"`
	CheckType  CheckType `json:"check_type,omitempty"`
}

type StartCheckResponse struct {
	CheckID    ID     `json:"check_id"`
	DocumentID ID     `json:"document_id,omitempty"`
	Status     string `json:"status,omitempty"`
}

// RawCheckResult ответ GET /gost-check/result/{check_id} как он есть.
// Поля с разной формой у разных версий бэкенда оставлены как any,
// приводит их только пакет checkresult.
type RawCheckResult struct {
	CheckID         ID      `json:"check_id,omitempty"`
	DocumentID      ID      `json:"document_id,omitempty"`
	Filename        *string `json:"filename,omitempty"`
	DocumentName    *string `json:"document_name,omitempty"`
	Score           any     `json:"score"`
	Status          *string `json:"status,omitempty"`
	Errors          []any   `json:"errors,omitempty"`
	Warnings        []any   `json:"warnings,omitempty"`
	AnalysisTime    any     `json:"analysis_time,omitempty"`
	AnalysisTimeMs  any     `json:"analysis_time_ms,omitempty"`
	PagesChecked    any     `json:"pages_checked,omitempty"`
	Accuracy        any     `json:"accuracy,omitempty"`
	Recommendation  *string `json:"recommendation,omitempty"`
	IsCompliant     *bool   `json:"is_compliant,omitempty"`
	CheckedAt       *string `json:"checked_at,omitempty"`

	// Счетчики: старые версии отдают critical_count/warning_count, новые total_*
	CriticalCount any `json:"critical_count,omitempty"`
	WarningCount  any `json:"warning_count,omitempty"`
	TotalErrors   any `json:"total_errors,omitempty"`
	TotalWarnings any `json:"total_warnings,omitempty"`
}

// CheckStatus ответ GET /gost-check/status/{document_id}
type CheckStatus struct {
	DocumentID             ID     `json:"document_id"`
	Status                 string `json:"status"`
	Progress               int    `json:"progress"`
	EstimatedTimeRemaining *int   `json:"estimated_time_remaining,omitempty"`
}

// Submission результат успешной отправки документа на проверку
type Submission struct {
	DocumentID  ID
	CheckID     ID
	FileName    string
	CheckType   CheckType
	SubmittedAt time.Time
}
