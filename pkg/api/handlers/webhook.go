package handlers

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/missfitcoaching/payments-api/pkg/api/errors"
	"github.com/missfitcoaching/payments-api/pkg/billing"
	"github.com/missfitcoaching/payments-api/pkg/models"
)

// WebhookHandler handles Stripe webhook events
type WebhookHandler struct {
	service *billing.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service *billing.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// Handle handles POST /webhook. The body is read as raw bytes and passed
// untouched to signature verification; re-serializing it would break the
// signature.
// @Summary Handle Stripe webhook
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe webhook signature"
// @Success 200 {object} models.WebhookAck
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /webhook [post]
func (h *WebhookHandler) Handle(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errors.BadRequestError(c, "invalid_body", "Failed to read request body")
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	if signature == "" {
		return errors.BadRequestError(c, "missing_signature", "Missing Stripe-Signature header")
	}

	if err := h.service.HandleEvent(c.Request().Context(), payload, signature); err != nil {
		if stderrors.Is(err, billing.ErrMissingSecret) {
			return errors.ConfigError(c, err)
		}
		return errors.BadRequestError(c, "invalid_signature", "Invalid webhook signature")
	}

	return c.JSON(http.StatusOK, models.WebhookAck{Received: true})
}
