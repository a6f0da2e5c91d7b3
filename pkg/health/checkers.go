package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-redis/redis/v8"
)

// Pinger любая зависимость с Ping: API-клиент, история
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisChecker проверка Redis, где лежит токен
func RedisChecker(client *redis.Client) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		start := time.Now()

		_, err := client.Ping(ctx).Result()
		duration := time.Since(start)

		if err != nil {
			return CheckResult{
				Status: StatusDown,
				Error:  err.Error(),
				Details: map[string]any{
					"duration_ms": duration.Milliseconds(),
				},
			}
		}

		keys, _ := client.DBSize(ctx).Result()

		return CheckResult{
			Status: StatusUp,
			Details: map[string]any{
				"duration_ms": duration.Milliseconds(),
				"keys":        keys,
			},
		}
	})
}

// PingChecker проверка через Ping. details добавляются к результату как есть
func PingChecker(p Pinger, details map[string]any) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		start := time.Now()
		err := p.Ping(ctx)

		d := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
		for k, v := range details {
			d[k] = v
		}

		if err != nil {
			return CheckResult{Status: StatusDown, Error: err.Error(), Details: d}
		}
		return CheckResult{Status: StatusUp, Details: d}
	})
}

// MemoryChecker куча процесса не больше maxHeapBytes. 0 снимает ограничение
func MemoryChecker(maxHeapBytes uint64) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		details := map[string]any{
			"heap_alloc_bytes": m.HeapAlloc,
			"goroutines":       runtime.NumGoroutine(),
		}
		if maxHeapBytes > 0 && m.HeapAlloc > maxHeapBytes {
			return CheckResult{Status: StatusDown, Error: "heap usage above limit", Details: details}
		}
		return CheckResult{Status: StatusUp, Details: details}
	})
}
