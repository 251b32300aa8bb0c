package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/missfitcoaching/payments-api/pkg/api/errors"
	"golang.org/x/time/rate"
)

// RateLimiter applies a token-bucket limit per client IP across all routes.
// This is the coarse safety net; the payment endpoint additionally runs the
// fixed-window limiter in payment_limiter.go.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	r        rate.Limit
	b        int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing requestsPerMinute sustained
// requests with the given burst per client IP.
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		r:        rate.Limit(float64(requestsPerMinute) / 60.0),
		b:        burst,
	}

	go rl.evictIdleVisitors(3 * time.Minute)

	return rl
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.r, rl.b)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()

	return v.limiter
}

// evictIdleVisitors drops visitors not seen within the given interval.
func (rl *RateLimiter) evictIdleVisitors(idle time.Duration) {
	for {
		time.Sleep(idle)

		rl.mu.Lock()
		cutoff := time.Now().Add(-idle)
		for ip, v := range rl.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware returns an Echo middleware enforcing the limit.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = c.Request().RemoteAddr
			}

			if !rl.limiterFor(ip).Allow() {
				return errors.TooManyRequestsError(c)
			}

			return next(c)
		}
	}
}
