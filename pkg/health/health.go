// Package health проверки зависимостей клиента и их отдача по gRPC health v1.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status состояние одной проверки или всего сервиса
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// CheckResult итог одной проверки
type CheckResult struct {
	Status  Status         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Checker проверяет одну зависимость
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc адаптер функции к Checker
type CheckerFunc func(ctx context.Context) CheckResult

func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// Report сводка по всем проверкам
type Report struct {
	Status    Status                 `json:"status"`
	Service   string                 `json:"service,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
}

// Names имена проверок по алфавиту
func (r Report) Names() []string {
	names := make([]string, 0, len(r.Checks))
	for name := range r.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run запускает проверки параллельно, каждую со своим таймаутом.
// Сервис up, только если up все проверки
func Run(ctx context.Context, timeout time.Duration, checkers map[string]Checker) Report {
	report := Report{
		Status:    StatusUp,
		Checks:    make(map[string]CheckResult, len(checkers)),
		Timestamp: time.Now(),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			res := runOne(ctx, timeout, checker)

			mu.Lock()
			report.Checks[name] = res
			if res.Status != StatusUp {
				report.Status = StatusDown
			}
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	return report
}

// runOne не дает зависшей проверке задержать сводку дольше таймаута
func runOne(ctx context.Context, timeout time.Duration, checker Checker) CheckResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- CheckResult{Status: StatusDown, Error: fmt.Sprintf("checker panic: %v", r)}
			}
		}()
		done <- checker.Check(ctx)
	}()

	select {
	case res := <-done:
		if res.Status == "" {
			res.Status = StatusUp
		}
		return res
	case <-ctx.Done():
		return CheckResult{Status: StatusDown, Error: ctx.Err().Error()}
	}
}
