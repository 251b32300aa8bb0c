package handlers

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/missfitcoaching/payments-api/pkg/api/errors"
	"github.com/missfitcoaching/payments-api/pkg/captcha"
	"github.com/missfitcoaching/payments-api/pkg/checkout"
	"github.com/missfitcoaching/payments-api/pkg/logger"
	"github.com/missfitcoaching/payments-api/pkg/metrics"
	"github.com/missfitcoaching/payments-api/pkg/middleware"
	"github.com/missfitcoaching/payments-api/pkg/models"
)

// PaymentHandler handles checkout session creation
type PaymentHandler struct {
	checkout        *checkout.Service
	captcha         captcha.Verifier
	captchaRequired bool
	validator       *validator.Validate
	log             logger.Logger
	metrics         *metrics.Metrics
}

// NewPaymentHandler creates a new payment handler. verifier may be nil when
// captchaRequired is false.
func NewPaymentHandler(checkoutService *checkout.Service, verifier captcha.Verifier, captchaRequired bool, log logger.Logger) *PaymentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &PaymentHandler{
		checkout:        checkoutService,
		captcha:         verifier,
		captchaRequired: captchaRequired,
		validator:       validator.New(),
		log:             log,
	}
}

// SetMetrics attaches a metrics recorder.
func (h *PaymentHandler) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// CreateSession handles POST /payment. The method, bot, origin and
// rate-limit gates have already run as middleware; this handler applies the
// content-type, parse, shape and CAPTCHA gates, then exchanges the request
// for a Stripe checkout session.
// @Summary Create Stripe checkout session
// @Accept json
// @Produce json
// @Success 200 {object} models.CheckoutResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /payment [post]
func (h *PaymentHandler) CreateSession(c echo.Context) error {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		return errors.BadRequestError(c, "invalid_content_type", "Content-Type must be application/json")
	}

	var req models.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequestError(c, "invalid_json", "Invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	if h.captchaRequired {
		if req.TurnstileToken == "" {
			return errors.BadRequestError(c, "missing_captcha_token", "Missing CAPTCHA token")
		}

		if err := h.captcha.Verify(c.Request().Context(), req.TurnstileToken, c.RealIP()); err != nil {
			h.log.Warn("captcha verification rejected", "ip", c.RealIP(), "error", err)
			h.metrics.IncCaptchaFailure()
			return c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "bot_verification_failed",
				Message: "Bot verification failed",
			})
		}
	}

	origin := middleware.ValidatedOrigin(c)

	resp, err := h.checkout.CreateSession(c.Request().Context(), req, origin)
	if err != nil {
		return errors.PaymentError(c, err)
	}

	h.metrics.IncCheckoutSession()
	return c.JSON(http.StatusOK, resp)
}

// Preflight is the terminal handler for OPTIONS /payment. The origin
// middleware answers valid preflights before this runs; it exists so the
// route is registered.
func (h *PaymentHandler) Preflight(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
