// Package submission загружает документ и запускает его проверку.
package submission

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rx3lixir/corrector-client/internal/apiclient"
	"github.com/rx3lixir/corrector-client/internal/logger"
	"github.com/rx3lixir/corrector-client/internal/models"
)

// File документ, выбранный пользователем. Size < 0 означает, что размер неизвестен
type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// OpenFile открывает файл с диска. Закрыть его нужно через File.Close
func OpenFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		fh.Close()
		return nil, apiclient.NewValidationError("file", path+" является каталогом")
	}

	return &File{Name: filepath.Base(path), Size: info.Size(), Content: fh}, nil
}

// Close закрывает содержимое, если оно это умеет
func (f *File) Close() error {
	if c, ok := f.Content.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// API эндпоинты, нужные для отправки. *apiclient.Client ему удовлетворяет
type API interface {
	Upload(ctx context.Context, fileName string, content io.Reader) (*models.UploadResponse, error)
	StartCheck(ctx context.Context, req models.StartCheckRequest) (*models.StartCheckResponse, error)
}

// Recorder сохраняет отправку в локальную историю
type Recorder interface {
	RecordSubmission(ctx context.Context, s models.Submission) error
}

// Flow загрузка документа и запуск проверки: два последовательных шага
type Flow struct {
	api      API
	maxBytes int64
	recorder Recorder
	log      logger.Logger
	now      func() time.Time
}

type Option func(*Flow)

func WithLogger(log logger.Logger) Option {
	return func(f *Flow) {
		if log != nil {
			f.log = log
		}
	}
}

// WithRecorder пишет каждую успешную отправку в историю.
// Ошибка записи не ломает отправку
func WithRecorder(r Recorder) Option {
	return func(f *Flow) {
		f.recorder = r
	}
}

// New создает Flow. maxBytes <= 0 отключает проверку размера
func New(api API, maxBytes int64, opts ...Option) *Flow {
	f := &Flow{
		api:      api,
		maxBytes: maxBytes,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Submit проверяет файл, загружает его и запускает проверку.
// Повторов нет: при ошибке вызывающий код может вызвать Submit заново
func (f *Flow) Submit(ctx context.Context, file *File, checkType models.CheckType) (*models.Submission, error) {
	if err := ValidateCheckType(checkType); err != nil {
		return nil, err
	}
	content, err := Validate(file, f.maxBytes)
	if err != nil {
		return nil, err
	}

	log := f.log.With("file", file.Name)

	log.Info("uploading document", "size", file.Size)
	uploaded, err := f.api.Upload(ctx, file.Name, content)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", file.Name, err)
	}
	if uploaded == nil || uploaded.DocumentID.IsZero() {
		return nil, &apiclient.ProtocolError{Op: "upload", Field: "document_id"}
	}

	log = log.With("document_id", uploaded.DocumentID.String())
	log.Info("starting check", "check_type", string(checkType))

	started, err := f.api.StartCheck(ctx, models.StartCheckRequest{
		DocumentID: uploaded.DocumentID,
		CheckType:  checkType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start check for document %s: %w", uploaded.DocumentID, err)
	}
	if started == nil || started.CheckID.IsZero() {
		log.Error("check_id is missing in start response")
		return nil, &apiclient.ProtocolError{Op: "start check", Field: "check_id"}
	}

	sub := &models.Submission{
		DocumentID:  uploaded.DocumentID,
		CheckID:     started.CheckID,
		FileName:    file.Name,
		CheckType:   checkType,
		SubmittedAt: f.now(),
	}
	log.Info("check started", "check_id", sub.CheckID.String())

	if f.recorder != nil {
		if err := f.recorder.RecordSubmission(ctx, *sub); err != nil {
			log.Warn("failed to record submission", "error", err)
		}
	}

	return sub, nil
}
