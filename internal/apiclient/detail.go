package apiclient

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// DetailKind вариант формы поля detail в ответе с ошибкой
type DetailKind string

const (
	DetailMessage DetailKind = "message"
	DetailFields  DetailKind = "fields"
	DetailUnknown DetailKind = "unknown"
)

// ErrorDetail поле detail, разобранное один раз на границе HTTP.
// Сервер присылает строку, объект {"msg": ...} или массив ошибок полей (422).
type ErrorDetail struct {
	Kind    DetailKind
	Message string
	Fields  []FieldError
	Raw     json.RawMessage
}

// FieldError ошибка конкретного поля
type FieldError struct {
	// Loc путь до поля, например ["body", "password"]
	Loc     []string `json:"loc,omitempty"`
	Field   string   `json:"field"`
	Message string   `json:"message"`
	Type    string   `json:"type,omitempty"`
}

// String форматирует ошибку как "body → password: message"
func (f FieldError) String() string {
	if len(f.Loc) > 0 {
		return strings.Join(f.Loc, " → ") + ": " + f.Message
	}
	if f.Field != "" {
		return f.Field + ": " + f.Message
	}
	return f.Message
}

type errorEnvelope struct {
	Detail  json.RawMessage `json:"detail"`
	Error   json.RawMessage `json:"error"`
	Message json.RawMessage `json:"message"`
}

// DecodeErrorDetail разбирает тело ответа с ошибкой.
// Порядок: detail, затем error и message. Нераспознанная форма - DetailUnknown
func DecodeErrorDetail(body []byte) ErrorDetail {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" || len(text) > 512 {
			return ErrorDetail{Kind: DetailUnknown}
		}
		return ErrorDetail{Kind: DetailMessage, Message: text}
	}

	for _, raw := range []json.RawMessage{env.Detail, env.Error, env.Message} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if d := decodeDetailValue(raw); d.Kind != DetailUnknown {
			return d
		}
	}

	return ErrorDetail{Kind: DetailUnknown, Raw: env.Detail}
}

func decodeDetailValue(raw json.RawMessage) ErrorDetail {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return ErrorDetail{Kind: DetailUnknown, Raw: raw}
	}

	switch v := value.(type) {
	case string:
		if v == "" {
			return ErrorDetail{Kind: DetailUnknown, Raw: raw}
		}
		return ErrorDetail{Kind: DetailMessage, Message: v, Raw: raw}
	case []any:
		fields := make([]FieldError, 0, len(v))
		for _, item := range v {
			fields = append(fields, decodeFieldError(item))
		}
		return ErrorDetail{Kind: DetailFields, Fields: fields, Raw: raw}
	case map[string]any:
		if msg := cast.ToString(v["msg"]); msg != "" {
			return ErrorDetail{Kind: DetailMessage, Message: msg, Raw: raw}
		}
		if msg := cast.ToString(v["message"]); msg != "" {
			return ErrorDetail{Kind: DetailMessage, Message: msg, Raw: raw}
		}
	}
	return ErrorDetail{Kind: DetailUnknown, Raw: raw}
}

// decodeFieldError разбирает элемент массива ошибок валидации FastAPI:
// {"loc": ["body", "password"], "msg": "...", "type": "..."}
func decodeFieldError(item any) FieldError {
	switch v := item.(type) {
	case string:
		return FieldError{Message: v}
	case map[string]any:
		fe := FieldError{
			Message: cast.ToString(v["msg"]),
			Type:    cast.ToString(v["type"]),
		}
		if fe.Message == "" {
			fe.Message = cast.ToString(v["message"])
		}
		for _, part := range cast.ToSlice(v["loc"]) {
			fe.Loc = append(fe.Loc, cast.ToString(part))
		}
		if len(fe.Loc) > 0 {
			fe.Field = fe.Loc[len(fe.Loc)-1]
		} else {
			fe.Field = cast.ToString(v["field"])
		}
		return fe
	default:
		return FieldError{Message: cast.ToString(v)}
	}
}
