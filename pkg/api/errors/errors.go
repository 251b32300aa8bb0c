package errors

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/missfitcoaching/payments-api/pkg/models"
)

// ValidationError returns a 400 naming the missing field class without
// exposing validator internals
func ValidationError(c echo.Context, err error) error {
	// Log the actual error for debugging
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Missing or invalid planName or amount.",
	})
}

// BadRequestError returns a 400 with an explicit error code and message
func BadRequestError(c echo.Context, code, message string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// PaymentError returns a generic payment processing error. The upstream
// provider's raw error text is logged server-side only, never forwarded.
func PaymentError(c echo.Context, err error) error {
	log.Printf("[PAYMENT ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "payment_error",
		Message: "Payment processing error",
	})
}

// ConfigError returns a 500 for a missing required secret. The server must
// fail closed rather than proceed without verification.
func ConfigError(c echo.Context, err error) error {
	log.Printf("[CONFIG ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "server_configuration_error",
		Message: "Server configuration error",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// ForbiddenError returns a generic forbidden error
func ForbiddenError(c echo.Context, reason string) error {
	log.Printf("[FORBIDDEN] Path: %s, Reason: %s", c.Request().URL.Path, reason)

	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   "forbidden",
		Message: "You do not have permission to access this resource.",
	})
}

// TooManyRequestsError returns a 429 for rate-limited clients
func TooManyRequestsError(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
		Error:   "rate_limit_exceeded",
		Message: "Too many requests. Please try again later.",
	})
}
