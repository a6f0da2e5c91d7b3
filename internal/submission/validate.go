package submission

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/rx3lixir/corrector-client/internal/apiclient"
	"github.com/rx3lixir/corrector-client/internal/models"
)

// sniffBytes сколько байт читать для определения типа по содержимому.
// docx распознается по именам внутри zip, поэтому берем больше 261 байта
const sniffBytes = 8 << 10

// AllowedExtensions допустимые расширения документа
var AllowedExtensions = []string{".pdf", ".doc", ".docx"}

// allowedMIME типы, которые допустимы для каждого расширения.
// Обрезанный docx сниффер видит как обычный zip
var allowedMIME = map[string][]string{
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
}

// Validate проверяет файл до любых сетевых запросов и возвращает reader,
// из которого можно прочитать содержимое целиком (заголовок уже прочитан).
// Все нарушения возвращаются как локальная *apiclient.ValidationError
func Validate(f *File, maxBytes int64) (io.Reader, error) {
	if f == nil || f.Content == nil {
		return nil, apiclient.NewValidationError("file", "Выберите файл")
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	allowed, ok := allowedMIME[ext]
	if !ok {
		return nil, apiclient.NewValidationError("file",
			"Недопустимый формат файла. Разрешены: "+strings.Join(AllowedExtensions, ", "))
	}

	content := f.Content
	size := f.Size
	if size < 0 && maxBytes > 0 {
		// Размер неизвестен: читаем не больше лимита плюс байт
		data, err := io.ReadAll(io.LimitReader(content, maxBytes+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", f.Name, err)
		}
		size = int64(len(data))
		content = bytes.NewReader(data)
	}

	if size == 0 {
		return nil, apiclient.NewValidationError("file", "Файл пустой")
	}
	if maxBytes > 0 && size > maxBytes {
		return nil, apiclient.NewValidationError("file",
			fmt.Sprintf("Файл слишком большой. Максимальный размер: %d МБ", maxBytes/(1<<20)))
	}

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read file header %s: %w", f.Name, err)
	}
	head = head[:n]

	// Без лимита и без размера файл не буферизуется, пустоту видно только по заголовку
	if n == 0 {
		return nil, apiclient.NewValidationError("file", "Файл пустой")
	}

	if mime := SniffMIME(head); mime != "" && !contains(allowed, mime) {
		return nil, apiclient.NewValidationError("file",
			fmt.Sprintf("Содержимое файла (%s) не соответствует расширению %s", mime, ext))
	}

	return io.MultiReader(bytes.NewReader(head), content), nil
}

// SniffMIME MIME-тип по сигнатуре или пустая строка, если тип не распознан
func SniffMIME(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// ValidateCheckType пустой тип допустим: сервер выберет ГОСТ сам
func ValidateCheckType(t models.CheckType) error {
	if t == "" || t.Valid() {
		return nil
	}
	names := make([]string, 0, len(models.CheckTypes))
	for _, ct := range models.CheckTypes {
		names = append(names, string(ct))
	}
	return apiclient.NewValidationError("check_type",
		fmt.Sprintf("Неизвестный тип проверки %q. Допустимые: %s", t, strings.Join(names, ", ")))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
