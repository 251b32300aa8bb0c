package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

type mockEmailSender struct {
	calls       int
	lastToEmail string
	lastToName  string
	lastSubject string
	lastHTML    string
	sendErr     error
}

func (m *mockEmailSender) SendEmail(toEmail, toName, subject, htmlBody, plainTextBody string) error {
	m.calls++
	m.lastToEmail = toEmail
	m.lastToName = toName
	m.lastSubject = subject
	m.lastHTML = htmlBody
	return m.sendErr
}

func newTestService(sender EmailSender) *WebhookService {
	return NewWebhookService("sk_test_x", "whsec_test_x", "https://missfitcoaching.com", sender, nil)
}

// stubEvent installs a verifier that returns the given event regardless of
// payload, standing in for a successful signature check.
func stubEvent(s *WebhookService, eventType string, dataObject any) {
	raw, _ := json.Marshal(dataObject)
	s.SetSignatureVerifier(func(payload []byte, sigHeader, secret string) (stripe.Event, error) {
		return stripe.Event{
			ID:   "evt_test_1",
			Type: stripe.EventType(eventType),
			Data: &stripe.EventData{Raw: raw},
		}, nil
	})
}

func TestHandleEvent_MissingSecretsFailClosed(t *testing.T) {
	cases := []struct {
		name   string
		apiKey string
		secret string
	}{
		{"no webhook secret", "sk_test_x", ""},
		{"no api key", "", "whsec_test_x"},
		{"neither", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := &mockEmailSender{}
			s := NewWebhookService(tc.apiKey, tc.secret, "https://missfitcoaching.com", sender, nil)

			err := s.HandleEvent(context.Background(), []byte(`{}`), "t=1,v1=abc")

			assert.ErrorIs(t, err, ErrMissingSecret)
			assert.Zero(t, sender.calls)
		})
	}
}

func TestHandleEvent_InvalidSignatureRejectedBeforeDispatch(t *testing.T) {
	sender := &mockEmailSender{}
	s := newTestService(sender)
	s.SetSignatureVerifier(func(payload []byte, sigHeader, secret string) (stripe.Event, error) {
		return stripe.Event{}, errors.New("signature mismatch")
	})

	err := s.HandleEvent(context.Background(), []byte(`{"type":"checkout.session.completed"}`), "t=1,v1=bad")

	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Zero(t, sender.calls, "no dispatch handler may run on an unverified event")
}

func TestHandleEvent_CheckoutCompletedSubscriptionSendsOneWelcomeEmail(t *testing.T) {
	sender := &mockEmailSender{}
	s := newTestService(sender)
	stubEvent(s, "checkout.session.completed", map[string]any{
		"id":       "cs_1",
		"mode":     "subscription",
		"metadata": map[string]string{"planName": "Transformation"},
		"customer_details": map[string]string{
			"email": "jo@example.com",
			"name":  "Jo",
		},
	})

	err := s.HandleEvent(context.Background(), []byte(`ignored`), "sig")

	require.NoError(t, err)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, "jo@example.com", sender.lastToEmail)
	assert.Equal(t, "Jo", sender.lastToName)
	assert.Contains(t, sender.lastSubject, "Transformation")
	assert.Contains(t, sender.lastHTML, "subscription")
}

func TestHandleEvent_CheckoutCompletedOneTimeSendsConfirmation(t *testing.T) {
	sender := &mockEmailSender{}
	s := newTestService(sender)
	stubEvent(s, "checkout.session.completed", map[string]any{
		"id":               "cs_2",
		"mode":             "payment",
		"metadata":         map[string]string{"planName": "Kickstart"},
		"customer_details": map[string]string{"email": "sam@example.com"},
	})

	err := s.HandleEvent(context.Background(), []byte(`ignored`), "sig")

	require.NoError(t, err)
	assert.Equal(t, 1, sender.calls)
	assert.Contains(t, sender.lastSubject, "confirmed")
	// Name falls back to email when customer details omit it
	assert.Equal(t, "sam@example.com", sender.lastToName)
}

func TestHandleEvent_CheckoutCompletedWithoutEmailSkipsSend(t *testing.T) {
	sender := &mockEmailSender{}
	s := newTestService(sender)
	stubEvent(s, "checkout.session.completed", map[string]any{
		"id":   "cs_3",
		"mode": "payment",
	})

	err := s.HandleEvent(context.Background(), []byte(`ignored`), "sig")

	require.NoError(t, err)
	assert.Zero(t, sender.calls)
}

func TestHandleEvent_UnknownTypeAcknowledgedWithoutSideEffects(t *testing.T) {
	sender := &mockEmailSender{}
	s := newTestService(sender)
	stubEvent(s, "charge.refunded.future_kind", map[string]any{"id": "re_1"})

	err := s.HandleEvent(context.Background(), []byte(`ignored`), "sig")

	require.NoError(t, err)
	assert.Zero(t, sender.calls)
}

func TestHandleEvent_HandlerFailureDoesNotEscalate(t *testing.T) {
	sender := &mockEmailSender{sendErr: errors.New("sendgrid down")}
	s := newTestService(sender)
	stubEvent(s, "checkout.session.completed", map[string]any{
		"id":               "cs_4",
		"mode":             "payment",
		"metadata":         map[string]string{"planName": "Kickstart"},
		"customer_details": map[string]string{"email": "sam@example.com"},
	})

	err := s.HandleEvent(context.Background(), []byte(`ignored`), "sig")

	// The event was verified and parsed; a side-effect failure must not
	// turn into a non-2xx that triggers Stripe redelivery.
	require.NoError(t, err)
	assert.Equal(t, 1, sender.calls)
}

func TestHandleEvent_PaymentIntentFailedNotifiesReceiptEmail(t *testing.T) {
	sender := &mockEmailSender{}
	s := newTestService(sender)
	stubEvent(s, "payment_intent.payment_failed", map[string]any{
		"id":            "pi_1",
		"receipt_email": "jo@example.com",
	})

	err := s.HandleEvent(context.Background(), []byte(`ignored`), "sig")

	require.NoError(t, err)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, "jo@example.com", sender.lastToEmail)
	assert.Contains(t, sender.lastSubject, "payment")
}

func TestHandleEvent_PaymentIntentFailedWithoutReceiptEmail(t *testing.T) {
	sender := &mockEmailSender{}
	s := newTestService(sender)
	stubEvent(s, "payment_intent.payment_failed", map[string]any{"id": "pi_2"})

	err := s.HandleEvent(context.Background(), []byte(`ignored`), "sig")

	require.NoError(t, err)
	assert.Zero(t, sender.calls)
}

func TestHandleEvent_LogOnlyEventsAreAccepted(t *testing.T) {
	logOnly := []string{
		"payment_intent.succeeded",
		"customer.subscription.created",
		"customer.subscription.deleted",
		"invoice.payment_succeeded",
		"invoice.payment_failed",
		"customer.created",
		"customer.updated",
	}

	for _, eventType := range logOnly {
		t.Run(eventType, func(t *testing.T) {
			sender := &mockEmailSender{}
			s := newTestService(sender)
			stubEvent(s, eventType, map[string]any{"id": "obj_1"})

			err := s.HandleEvent(context.Background(), []byte(`ignored`), "sig")

			require.NoError(t, err)
			assert.Zero(t, sender.calls)
		})
	}
}

func TestHandleEvent_SubscriptionUpdatedVariants(t *testing.T) {
	variants := []map[string]any{
		{"id": "sub_1", "status": "active", "cancel_at_period_end": true},
		{"id": "sub_2", "status": "past_due"},
		{"id": "sub_3", "status": "active"},
	}

	for _, obj := range variants {
		sender := &mockEmailSender{}
		s := newTestService(sender)
		stubEvent(s, "customer.subscription.updated", obj)

		err := s.HandleEvent(context.Background(), []byte(`ignored`), "sig")

		require.NoError(t, err)
		assert.Zero(t, sender.calls)
	}
}

func TestPlanNameFromSession(t *testing.T) {
	tests := []struct {
		name string
		sess stripe.CheckoutSession
		want string
	}{
		{
			name: "from metadata",
			sess: stripe.CheckoutSession{Metadata: map[string]string{"planName": "Gold"}},
			want: "Gold",
		},
		{
			name: "from line item description",
			sess: stripe.CheckoutSession{
				LineItems: &stripe.LineItemList{Data: []*stripe.LineItem{
					{Description: "MissFit - Silver Plan"},
				}},
			},
			want: "Silver",
		},
		{
			name: "metadata wins over line items",
			sess: stripe.CheckoutSession{
				Metadata: map[string]string{"planName": "Gold"},
				LineItems: &stripe.LineItemList{Data: []*stripe.LineItem{
					{Description: "MissFit - Silver Plan"},
				}},
			},
			want: "Gold",
		},
		{
			name: "description without pattern",
			sess: stripe.CheckoutSession{
				LineItems: &stripe.LineItemList{Data: []*stripe.LineItem{
					{Description: "Something else entirely"},
				}},
			},
			want: "Unknown Plan",
		},
		{
			name: "no hints",
			sess: stripe.CheckoutSession{},
			want: "Unknown Plan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, planNameFromSession(&tt.sess))
		})
	}
}
