package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/missfitcoaching/payments-api/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func doLimitedRequest(t *testing.T, mw echo.MiddlewareFunc, ip string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payment", nil)
	req.Header.Set("X-Real-IP", ip)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	return rec
}

func TestPaymentRateLimit_SixthRequestRejected(t *testing.T) {
	store, _ := setupRedisStore(t)
	mw := PaymentRateLimit(PaymentLimiterConfig{Store: store, Limit: 5, Window: time.Minute})

	for i := 0; i < 5; i++ {
		rec := doLimitedRequest(t, mw, "203.0.113.7")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := doLimitedRequest(t, mw, "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPaymentRateLimit_WindowExpiryResets(t *testing.T) {
	store, mr := setupRedisStore(t)
	mw := PaymentRateLimit(PaymentLimiterConfig{Store: store, Limit: 5, Window: time.Minute})

	for i := 0; i < 6; i++ {
		doLimitedRequest(t, mw, "203.0.113.7")
	}
	rec := doLimitedRequest(t, mw, "203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	mr.FastForward(61 * time.Second)

	rec = doLimitedRequest(t, mw, "203.0.113.7")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentRateLimit_PerClientIsolation(t *testing.T) {
	store, _ := setupRedisStore(t)
	mw := PaymentRateLimit(PaymentLimiterConfig{Store: store, Limit: 5, Window: time.Minute})

	for i := 0; i < 6; i++ {
		doLimitedRequest(t, mw, "203.0.113.7")
	}

	rec := doLimitedRequest(t, mw, "198.51.100.9")
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestPaymentRateLimit_StoreErrorFailsOpen(t *testing.T) {
	mw := PaymentRateLimit(PaymentLimiterConfig{Store: failingStore{}, Limit: 5, Window: time.Minute})

	rec := doLimitedRequest(t, mw, "203.0.113.7")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMemoryCounterStore_WindowBehavior(t *testing.T) {
	store := NewMemoryCounterStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, err := store.Incr(ctx, "rate_limit:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	// Advance past the window; count resets
	now = now.Add(61 * time.Second)
	count, err := store.Incr(ctx, "rate_limit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
