package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	CheckoutSessionsCreated prometheus.Counter
	CaptchaFailures         prometheus.Counter
	RateLimitRejections     prometheus.Counter
	WebhookEventsTotal      *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a Metrics instance registered on the given registerer.
// Tests pass a fresh registry to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		CheckoutSessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_sessions_created_total",
				Help: "Total number of Stripe checkout sessions created",
			},
		),
		CaptchaFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "captcha_failures_total",
				Help: "Total number of failed CAPTCHA verifications",
			},
		),
		RateLimitRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_rejections_total",
				Help: "Total number of requests rejected by the payment rate limiter",
			},
		),
		WebhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Total number of Stripe webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
	}
}

// Middleware returns an Echo middleware recording request counts and
// latency per method, route and status.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			labels := []string{c.Request().Method, c.Path(), strconv.Itoa(status)}
			m.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
			m.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// IncCheckoutSession increments the checkout session counter. Safe on nil.
func (m *Metrics) IncCheckoutSession() {
	if m != nil {
		m.CheckoutSessionsCreated.Inc()
	}
}

// IncCaptchaFailure increments the CAPTCHA failure counter. Safe on nil.
func (m *Metrics) IncCaptchaFailure() {
	if m != nil {
		m.CaptchaFailures.Inc()
	}
}

// IncRateLimitRejection increments the rate-limit counter. Safe on nil.
func (m *Metrics) IncRateLimitRejection() {
	if m != nil {
		m.RateLimitRejections.Inc()
	}
}

// ObserveWebhookEvent records a webhook event outcome. Safe on nil.
func (m *Metrics) ObserveWebhookEvent(eventType, outcome string) {
	if m != nil {
		m.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	}
}
