// Package history локальная история проверок в SQLite.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rx3lixir/corrector-client/internal/checkresult"
	"github.com/rx3lixir/corrector-client/internal/logger"
	"github.com/rx3lixir/corrector-client/internal/models"
)

// ErrNotFound проверки нет в истории
var ErrNotFound = errors.New("check not found in history")

// DefaultListLimit сколько записей возвращает List при limit <= 0
const DefaultListLimit = 20

// CheckRecord одна проверка: отправка и, когда он получен, итог
type CheckRecord struct {
	ID             uint       `gorm:"primaryKey"`
	CheckID        string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	DocumentID     string     `gorm:"type:varchar(64);index"`
	FileName       string     `gorm:"type:varchar(255)"`
	DocumentName   string     `gorm:"type:varchar(255)"`
	CheckType      string     `gorm:"type:varchar(16)"`
	Status         string     `gorm:"type:varchar(64)"`
	Score          *float64   `gorm:"type:real"`
	Percent        *int       `gorm:"type:int"`
	Errors         int        `gorm:"type:int"`
	Warnings       int        `gorm:"type:int"`
	Recommendation string     `gorm:"type:text"`
	Terminal       bool       `gorm:"index"`
	SubmittedAt    time.Time  `gorm:"index"`
	FinishedAt     *time.Time
	UpdatedAt      time.Time
}

// Store история поверх gorm
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// Open открывает или создает базу по path. ":memory:" держит ее в памяти
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create history dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// Одно соединение: SQLite не любит параллельную запись, а :memory: живет в соединении
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&CheckRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate history: %w", err)
	}

	log.Debug("history opened", "path", path)
	return &Store{db: db, log: log}, nil
}

// RecordSubmission сохраняет отправку. Повторная запись того же check_id
// обновляет данные отправки, итог не трогает
func (s *Store) RecordSubmission(ctx context.Context, sub models.Submission) error {
	rec := CheckRecord{
		CheckID:     sub.CheckID.String(),
		DocumentID:  sub.DocumentID.String(),
		FileName:    sub.FileName,
		CheckType:   string(sub.CheckType),
		Status:      checkresult.StatusProcessing,
		SubmittedAt: sub.SubmittedAt,
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "check_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"document_id", "file_name", "check_type", "submitted_at", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to record submission %s: %w", sub.CheckID, err)
	}
	return nil
}

// RecordResult сохраняет нормализованный результат. Если отправки в истории
// нет (результат открыт по id), запись создается
func (s *Store) RecordResult(ctx context.Context, res checkresult.CheckResult) error {
	if res.CheckID.IsZero() {
		return fmt.Errorf("failed to record result: empty check id")
	}

	rec := CheckRecord{
		CheckID:        res.CheckID.String(),
		DocumentID:     res.DocumentID.String(),
		DocumentName:   res.DocumentName,
		Status:         res.Status,
		Errors:         res.CriticalCount,
		Warnings:       res.WarningCount,
		Recommendation: res.Recommendation,
		Terminal:       res.IsTerminal,
		SubmittedAt:    time.Now(),
	}
	if res.ScorePresent {
		score, percent := res.NormalizedScore, res.Percent
		rec.Score, rec.Percent = &score, &percent
	}
	if res.IsTerminal {
		now := time.Now()
		rec.FinishedAt = &now
	}

	columns := []string{"document_name", "status", "score", "percent", "errors", "warnings", "recommendation", "terminal", "finished_at", "updated_at"}
	if rec.DocumentID != "" {
		columns = append(columns, "document_id")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "check_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to record result %s: %w", res.CheckID, err)
	}
	return nil
}

// List последние проверки, новые первыми
func (s *Store) List(ctx context.Context, limit int) ([]CheckRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var records []CheckRecord
	err := s.db.WithContext(ctx).
		Order("submitted_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return records, nil
}

// Get запись по check_id или ErrNotFound
func (s *Store) Get(ctx context.Context, checkID models.ID) (*CheckRecord, error) {
	var rec CheckRecord
	err := s.db.WithContext(ctx).Where("check_id = ?", checkID.String()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check %s: %w", checkID, err)
	}
	return &rec, nil
}

// Ping проверка доступности базы для health
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
