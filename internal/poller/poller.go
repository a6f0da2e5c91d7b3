// Package poller опрашивает результат проверки, пока он не станет финальным.
package poller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rx3lixir/corrector-client/internal/apiclient"
	"github.com/rx3lixir/corrector-client/internal/checkresult"
	"github.com/rx3lixir/corrector-client/internal/config"
	"github.com/rx3lixir/corrector-client/internal/logger"
	"github.com/rx3lixir/corrector-client/internal/models"
)

// DefaultInterval пауза между запросами результата
const DefaultInterval = 3 * time.Second

// ErrMaxAttempts результат не стал финальным за отведенное число попыток
var ErrMaxAttempts = errors.New("check result is not ready after max attempts")

// Fetcher источник сырого результата. *apiclient.Client ему удовлетворяет
type Fetcher interface {
	CheckResult(ctx context.Context, checkID models.ID) (*models.RawCheckResult, error)
}

// Timer таймер одной паузы
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// TimerFunc создает таймер на d
type TimerFunc func(d time.Duration) Timer

type stdTimer struct{ t *time.Timer }

func (s stdTimer) C() <-chan time.Time { return s.t.C }
func (s stdTimer) Stop() bool          { return s.t.Stop() }

func newStdTimer(d time.Duration) Timer {
	return stdTimer{t: time.NewTimer(d)}
}

// Update одно событие опроса. Заполнено ровно одно из Result, Err;
// Pending означает, что сервер еще не создал результат (404)
type Update struct {
	Attempt int
	Result  *checkresult.CheckResult
	Pending bool
	Err     error
}

// Poller опрашивает результат проверки
type Poller struct {
	fetcher     Fetcher
	interval    time.Duration
	maxInterval time.Duration
	multiplier  float64
	maxAttempts int
	newTimer    TimerFunc
	log         logger.Logger
}

type Option func(*Poller)

func WithLogger(log logger.Logger) Option {
	return func(p *Poller) {
		if log != nil {
			p.log = log
		}
	}
}

// WithTimer подменяет таймер (тесты)
func WithTimer(fn TimerFunc) Option {
	return func(p *Poller) {
		if fn != nil {
			p.newTimer = fn
		}
	}
}

// New создает Poller. Некорректные параметры заменяются безопасными:
// интервал 3 с, множитель не меньше 1, потолок не меньше интервала.
// MaxAttempts <= 0 снимает ограничение на число попыток
func New(fetcher Fetcher, params config.PollParams, opts ...Option) *Poller {
	p := &Poller{
		fetcher:     fetcher,
		interval:    params.Interval,
		maxInterval: params.MaxInterval,
		multiplier:  params.BackoffMultiplier,
		maxAttempts: params.MaxAttempts,
		newTimer:    newStdTimer,
		log:         logger.Nop(),
	}

	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.multiplier < 1 {
		p.multiplier = 1
	}
	if p.maxInterval < p.interval {
		p.maxInterval = p.interval
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll запускает опрос и возвращает канал событий. Канал закрывается после
// финального результата, ошибки, отмены ctx или исчерпания попыток.
// Отмена ctx останавливает таймер и прекращает запросы
func (p *Poller) Poll(ctx context.Context, checkID models.ID) <-chan Update {
	out := make(chan Update)
	go p.run(ctx, checkID, out)
	return out
}

func (p *Poller) run(ctx context.Context, checkID models.ID, out chan<- Update) {
	defer close(out)

	log := p.log.With("check_id", checkID.String())
	delay := p.interval

	for attempt := 1; ; attempt++ {
		upd := Update{Attempt: attempt}

		raw, err := p.fetcher.CheckResult(ctx, checkID)
		switch {
		case err == nil:
			res := checkresult.Normalize(raw)
			upd.Result = &res
		case ctx.Err() != nil:
			log.Debug("polling canceled", "attempt", attempt)
			return
		case isNotReady(err):
			upd.Pending = true
		default:
			log.Warn("polling failed", "attempt", attempt, "error", err)
			upd.Err = fmt.Errorf("failed to fetch check result %s: %w", checkID, err)
			p.send(ctx, out, upd)
			return
		}

		if !p.send(ctx, out, upd) {
			return
		}

		if upd.Result != nil && upd.Result.IsTerminal {
			log.Info("check finished", "attempt", attempt, "status", upd.Result.Status, "score", upd.Result.NormalizedScore)
			return
		}

		if p.maxAttempts > 0 && attempt >= p.maxAttempts {
			log.Warn("polling gave up", "attempts", attempt)
			p.send(ctx, out, Update{Attempt: attempt, Err: ErrMaxAttempts})
			return
		}

		log.Debug("check in progress", "attempt", attempt, "next_in", delay)
		if err := p.sleep(ctx, delay); err != nil {
			return
		}
		delay = p.next(delay)
	}
}

// send не блокируется дольше жизни ctx
func (p *Poller) send(ctx context.Context, out chan<- Update, upd Update) bool {
	select {
	case out <- upd:
		return true
	case <-ctx.Done():
		return false
	}
}

// sleep ждет d или отмены ctx; таймер освобождается на любом пути
func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	timer := p.newTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// next следующая пауза: текущая, умноженная на множитель, но не выше потолка
func (p *Poller) next(d time.Duration) time.Duration {
	if p.multiplier == 1 {
		return d
	}
	n := float64(d) * p.multiplier
	if n >= float64(p.maxInterval) || n > math.MaxInt64 {
		return p.maxInterval
	}
	return time.Duration(n)
}

// Wait блокирующий вариант Poll. onUpdate может быть nil.
// Возвращает последний полученный результат вместе с ошибкой, если она была
func (p *Poller) Wait(ctx context.Context, checkID models.ID, onUpdate func(Update)) (*checkresult.CheckResult, error) {
	var last *checkresult.CheckResult

	for upd := range p.Poll(ctx, checkID) {
		if onUpdate != nil {
			onUpdate(upd)
		}
		if upd.Err != nil {
			return last, upd.Err
		}
		if upd.Result != nil {
			last = upd.Result
			if last.IsTerminal {
				return last, nil
			}
		}
	}

	return last, ctx.Err()
}

// isNotReady 404 на результат значит, что сервер его еще не записал
func isNotReady(err error) bool {
	var nf *apiclient.NotFoundError
	return errors.As(err, &nf)
}
