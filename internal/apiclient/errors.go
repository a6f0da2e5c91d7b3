package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

// GenericErrorMessage показывается, когда сервер не прислал понятного текста
const GenericErrorMessage = "Произошла ошибка. Попробуйте позже"

// UserMessage возвращает человекочитаемый текст для любой ошибки клиента
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var m interface{ Message() string }
	if errors.As(err, &m) {
		return m.Message()
	}
	return err.Error()
}

// AuthError неверные учетные данные или истекшая сессия (401)
type AuthError struct {
	Status int
	Detail ErrorDetail
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %s", e.Status, e.Message())
}

func (e *AuthError) Message() string {
	if e.Detail.Kind == DetailMessage {
		return e.Detail.Message
	}
	return "Требуется повторный вход"
}

// ValidationError ошибки полей: ответ 422 или локальная проверка до запроса
type ValidationError struct {
	Fields []FieldError
	// Local выставлен, если ошибка найдена до сетевого запроса
	Local bool
}

// NewValidationError создает локальную ошибку валидации одного поля
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Fields: []FieldError{{Field: field, Message: message}},
		Local:  true,
	}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message()
}

// Message одна строка на поле
func (e *ValidationError) Message() string {
	if len(e.Fields) == 0 {
		return "Некорректные данные"
	}
	lines := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		lines = append(lines, f.String())
	}
	return strings.Join(lines, "\n")
}

// ProtocolError сервер нарушил контракт: нет обязательного поля в ответе
type ProtocolError struct {
	Op    string
	Field string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: server response is missing required field %q", e.Op, e.Field)
}

func (e *ProtocolError) Message() string {
	return fmt.Sprintf("Сервер вернул некорректный ответ: нет поля %s", e.Field)
}

// NetworkError сбой транспорта: соединение, таймаут, обрыв
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Message() string {
	return "Сервер недоступен. Проверьте соединение и повторите попытку"
}

// NotFoundError ресурс не найден (404), например результат еще не готов
type NotFoundError struct {
	Path   string
	Detail ErrorDetail
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: not found", e.Path)
}

func (e *NotFoundError) Message() string {
	if e.Detail.Kind == DetailMessage {
		return e.Detail.Message
	}
	return "Не найдено"
}

// HTTPError любой другой неуспешный ответ
type HTTPError struct {
	Status int
	Path   string
	Detail ErrorDetail
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Path, e.Status, e.Message())
}

func (e *HTTPError) Message() string {
	if e.Detail.Kind == DetailMessage {
		return e.Detail.Message
	}
	return GenericErrorMessage
}
