package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/missfitcoaching/payments-api/pkg/api/errors"
	"github.com/missfitcoaching/payments-api/pkg/logger"
	"github.com/missfitcoaching/payments-api/pkg/metrics"
)

// CounterStore increments a TTL-expiring counter and returns the new count.
// A fresh key starts its window at the first increment. Increments are not
// required to be atomic across concurrent requests from the same client;
// the limit is best-effort abuse mitigation, not a security boundary.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// PaymentLimiterConfig holds configuration for the fixed-window payment
// rate limiter.
type PaymentLimiterConfig struct {
	Store   CounterStore
	Limit   int
	Window  time.Duration
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// PaymentRateLimit returns an Echo middleware that allows at most Limit
// requests per client IP per Window. Store failures fail open: a broken
// counter store must not take checkout down with it.
func PaymentRateLimit(config PaymentLimiterConfig) echo.MiddlewareFunc {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = c.Request().RemoteAddr
			}

			count, err := config.Store.Incr(c.Request().Context(), "rate_limit:"+ip, config.Window)
			if err != nil {
				log.Warn("rate limit store unavailable, failing open", "error", err)
				return next(c)
			}

			if count > int64(config.Limit) {
				log.Debug("rate limit exceeded", "ip", ip, "count", count)
				config.Metrics.IncRateLimitRejection()
				return errors.TooManyRequestsError(c)
			}

			return next(c)
		}
	}
}

// MemoryCounterStore is an in-process CounterStore used when Redis is not
// configured (single-instance deployments and tests). Windows are tracked
// per key and reset lazily on access after expiry.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*memoryCounter
	now     func() time.Time
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		entries: make(map[string]*memoryCounter),
		now:     time.Now,
	}
}

// Incr increments the counter for key, starting a new window if the key is
// absent or its window has expired.
func (s *MemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.expiresAt) {
		s.entries[key] = &memoryCounter{count: 1, expiresAt: now.Add(window)}
		return 1, nil
	}

	entry.count++
	return entry.count, nil
}
