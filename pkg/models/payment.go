package models

// CheckoutRequest represents a request to create a Stripe checkout session.
// Field names match what the marketing site's payment form posts.
type CheckoutRequest struct {
	PlanName       string  `json:"planName" validate:"required"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	PaymentType    string  `json:"paymentType" validate:"omitempty,oneof=onetime subscription"`
	IntervalCount  int     `json:"intervalCount" validate:"omitempty,min=1"`
	ReturnURL      string  `json:"returnUrl" validate:"omitempty,url"`
	TurnstileToken string  `json:"turnstileToken"`
}

// IsSubscription reports whether the request is for a recurring plan.
// Anything other than an explicit "subscription" is a one-time payment.
func (r CheckoutRequest) IsSubscription() bool {
	return r.PaymentType == "subscription"
}

// CheckoutResponse represents a checkout session response
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
}

// WebhookAck acknowledges receipt of a verified webhook event
type WebhookAck struct {
	Received bool `json:"received"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
