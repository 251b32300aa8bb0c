package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/missfitcoaching/payments-api/pkg/logger"
	"github.com/missfitcoaching/payments-api/pkg/metrics"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	// ErrMissingSecret means the webhook secret or Stripe API key is not
	// configured. The handler must fail closed with a 500, never process
	// unverified events.
	ErrMissingSecret = errors.New("stripe webhook secret or API key not configured")

	// ErrInvalidSignature means the payload did not verify against the
	// webhook secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// EmailSender abstracts email sending for payment notifications.
type EmailSender interface {
	SendEmail(toEmail, toName, subject, htmlBody, plainTextBody string) error
}

// SignatureVerifier verifies a raw payload against a signature header and
// secret, returning the parsed event. The default is Stripe's
// webhook.ConstructEvent; tests substitute a deterministic one.
type SignatureVerifier func(payload []byte, sigHeader, secret string) (stripe.Event, error)

// WebhookService verifies and dispatches Stripe webhook events.
type WebhookService struct {
	apiKey        string
	webhookSecret string
	verify        SignatureVerifier
	email         EmailSender
	baseURL       string
	log           logger.Logger
	metrics       *metrics.Metrics
}

// NewWebhookService creates a webhook service. email may be nil, in which
// case notification side effects are skipped (and logged).
func NewWebhookService(apiKey, webhookSecret, baseURL string, email EmailSender, log logger.Logger) *WebhookService {
	if log == nil {
		log = logger.Default()
	}
	return &WebhookService{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		verify:        webhook.ConstructEvent,
		email:         email,
		baseURL:       baseURL,
		log:           log,
	}
}

// SetMetrics attaches a metrics recorder for webhook event outcomes.
func (s *WebhookService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetSignatureVerifier overrides the signature verification primitive.
func (s *WebhookService) SetSignatureVerifier(v SignatureVerifier) {
	s.verify = v
}

// HandleEvent verifies the signature over the exact raw payload bytes, then
// dispatches the parsed event. Verification MUST precede any parsing of the
// body as trusted data. Failures inside dispatched handlers are logged but
// never escalate: a verified, parsed event is always acknowledged so Stripe
// does not redeliver it.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" || s.apiKey == "" {
		return ErrMissingSecret
	}

	event, err := s.verify(payload, signature, s.webhookSecret)
	if err != nil {
		s.metrics.ObserveWebhookEvent("unverified", "rejected")
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	s.dispatch(ctx, event)
	return nil
}

// dispatch routes a verified event to its handler by type. Unknown types
// are logged and accepted so new Stripe event kinds never cause redelivery
// storms.
func (s *WebhookService) dispatch(ctx context.Context, event stripe.Event) {
	eventType := string(event.Type)
	s.log.Debug("processing webhook event", "type", eventType, "event_id", event.ID)

	var err error
	switch eventType {
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, event)
	case "payment_intent.succeeded":
		s.log.Debug("payment intent succeeded", "event_id", event.ID)
	case "payment_intent.payment_failed":
		err = s.handlePaymentIntentFailed(event)
	case "customer.subscription.created":
		s.log.Info("subscription created", "event_id", event.ID)
	case "customer.subscription.updated":
		err = s.handleSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		s.log.Info("subscription cancelled", "event_id", event.ID)
	case "invoice.payment_succeeded":
		s.log.Debug("invoice payment succeeded", "event_id", event.ID)
	case "invoice.payment_failed":
		s.log.Warn("invoice payment failed", "event_id", event.ID)
	case "customer.created", "customer.updated":
		s.log.Debug("customer event", "type", eventType, "event_id", event.ID)
	default:
		s.log.Warn("unhandled webhook event type", "type", eventType, "event_id", event.ID)
		s.metrics.ObserveWebhookEvent(eventType, "ignored")
		return
	}

	if err != nil {
		s.log.Error("webhook handler failed", "type", eventType, "event_id", event.ID, "error", err)
		s.metrics.ObserveWebhookEvent(eventType, "handler_error")
		return
	}

	s.metrics.ObserveWebhookEvent(eventType, "processed")
}

// handleCheckoutCompleted sends the welcome email for a completed checkout.
// Stripe may deliver the same event more than once; a duplicate welcome
// email is accepted as non-catastrophic.
func (s *WebhookService) handleCheckoutCompleted(_ context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}

	planName := planNameFromSession(&sess)

	purchaseType := "onetime"
	if sess.Mode == stripe.CheckoutSessionModeSubscription {
		purchaseType = "subscription"
	}

	s.log.Info("checkout completed", "session_id", sess.ID, "plan", planName, "type", purchaseType)

	email, name := customerContact(&sess)
	if email == "" {
		s.log.Warn("checkout session has no customer email, skipping welcome email", "session_id", sess.ID)
		return nil
	}

	if s.email == nil {
		s.log.Warn("email sender not configured, skipping welcome email", "session_id", sess.ID)
		return nil
	}

	subject, html, plain := buildWelcomeEmail(name, planName, purchaseType, s.baseURL)
	if err := s.email.SendEmail(email, name, subject, html, plain); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	return nil
}

// handlePaymentIntentFailed notifies the payer when a payment attempt
// fails, when a receipt email is available.
func (s *WebhookService) handlePaymentIntentFailed(event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	s.log.Warn("payment intent failed", "payment_intent_id", intent.ID)

	if intent.ReceiptEmail == "" || s.email == nil {
		return nil
	}

	subject, html, plain := buildPaymentFailedEmail(intent.ReceiptEmail, s.baseURL)
	if err := s.email.SendEmail(intent.ReceiptEmail, intent.ReceiptEmail, subject, html, plain); err != nil {
		return fmt.Errorf("failed to send payment failure email: %w", err)
	}

	return nil
}

// handleSubscriptionUpdated logs notable subscription state transitions.
func (s *WebhookService) handleSubscriptionUpdated(event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	switch {
	case sub.Status == stripe.SubscriptionStatusActive && sub.CancelAtPeriodEnd:
		s.log.Info("subscription set to cancel at period end", "subscription_id", sub.ID)
	case sub.Status == stripe.SubscriptionStatusPastDue:
		s.log.Warn("subscription payment past due", "subscription_id", sub.ID)
	default:
		s.log.Debug("subscription updated", "subscription_id", sub.ID, "status", string(sub.Status))
	}

	return nil
}

// planNameRe extracts the plan from the product description the checkout
// service writes ("MissFit - {PlanName} Plan").
var planNameRe = regexp.MustCompile(`MissFit - (.*?) Plan`)

// planNameFromSession derives the plan name from session metadata, falling
// back to the line-item description pattern.
func planNameFromSession(sess *stripe.CheckoutSession) string {
	if name, ok := sess.Metadata["planName"]; ok && name != "" {
		return name
	}

	if sess.LineItems != nil && len(sess.LineItems.Data) > 0 {
		if m := planNameRe.FindStringSubmatch(sess.LineItems.Data[0].Description); m != nil {
			return m[1]
		}
	}

	return "Unknown Plan"
}

// customerContact returns the payer's email and display name from the
// session's customer details.
func customerContact(sess *stripe.CheckoutSession) (email, name string) {
	if sess.CustomerDetails == nil {
		return "", ""
	}
	email = sess.CustomerDetails.Email
	name = sess.CustomerDetails.Name
	if name == "" {
		name = email
	}
	return email, name
}
