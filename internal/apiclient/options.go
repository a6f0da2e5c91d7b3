package apiclient

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rx3lixir/corrector-client/internal/logger"
)

// Option настраивает Client
type Option func(*Client)

// WithHTTPClient подменяет http.Client целиком (тесты, собственный транспорт).
// Cookie jar при этом берется из переданного клиента
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout общий таймаут одного запроса
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit ограничивает частоту запросов клиента. rps <= 0 отключает ограничение
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithUnauthorizedHandler подписывает наблюдателя сессии на ответы 401
func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *Client) {
		c.onUnauthorized = h
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}
