package checkout

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/missfitcoaching/payments-api/pkg/logger"
	"github.com/missfitcoaching/payments-api/pkg/models"
	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
)

// SessionCreator abstracts the Stripe checkout-session API so tests can
// substitute a deterministic fake for the network call.
type SessionCreator interface {
	Create(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeCreator creates checkout sessions against the live Stripe API.
type StripeCreator struct{}

// NewStripeCreator configures the Stripe client with the secret key and an
// explicit HTTP timeout, and returns a creator bound to it.
func NewStripeCreator(secretKey string, timeout time.Duration) *StripeCreator {
	stripe.Key = secretKey
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: timeout},
	}))

	return &StripeCreator{}
}

// Create submits the session parameters to Stripe.
func (s *StripeCreator) Create(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return checkoutsession.New(params)
}

// Service builds checkout sessions for validated payment requests.
type Service struct {
	creator SessionCreator
	log     logger.Logger
}

// NewService creates a new checkout service
func NewService(creator SessionCreator, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{creator: creator, log: log}
}

// CreateSession exchanges a validated checkout request for a Stripe session
// id. origin is the validated request origin and anchors the success URL
// and the cancel-URL fallback.
func (s *Service) CreateSession(ctx context.Context, req models.CheckoutRequest, origin string) (*models.CheckoutResponse, error) {
	params := buildSessionParams(req, origin)
	params.Context = ctx

	sess, err := s.creator.Create(params)
	if err != nil {
		// The raw provider error stays server-side; callers surface a
		// generic payment error to the client.
		s.log.Error("stripe checkout session creation failed", "plan", req.PlanName, "error", err)
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.log.Info("checkout session created", "session_id", sess.ID, "plan", req.PlanName, "mode", string(sess.Mode))

	return &models.CheckoutResponse{SessionID: sess.ID}, nil
}

// buildSessionParams translates a checkout request into Stripe session
// parameters. Subscriptions bill monthly with the requested interval count;
// one-time payments carry no recurring fields.
func buildSessionParams(req models.CheckoutRequest, origin string) *stripe.CheckoutSessionParams {
	productName := fmt.Sprintf("MissFit - %s Plan", req.PlanName)

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		UnitAmount: stripe.Int64(toMinorUnits(req.Amount)),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(productName),
		},
	}

	mode := stripe.CheckoutSessionModePayment
	paymentType := "onetime"

	if req.IsSubscription() {
		mode = stripe.CheckoutSessionModeSubscription
		paymentType = "subscription"

		intervalCount := req.IntervalCount
		if intervalCount < 1 {
			intervalCount = 1
		}

		priceData.ProductData.Description = stripe.String(fmt.Sprintf("%s Package - Monthly Payments", req.PlanName))
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval:      stripe.String(string(stripe.PriceRecurringIntervalMonth)),
			IntervalCount: stripe.Int64(int64(intervalCount)),
		}
	} else {
		priceData.ProductData.Description = stripe.String(fmt.Sprintf("%s Package", req.PlanName))
	}

	cancelURL := req.ReturnURL
	if cancelURL == "" {
		cancelURL = origin
	}

	successURL := fmt.Sprintf("%s/success.html?plan=%s&type=%s", origin, url.QueryEscape(req.PlanName), paymentType)

	return &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(mode)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: priceData,
				Quantity:  stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Metadata: map[string]string{
			"planName":    req.PlanName,
			"paymentType": paymentType,
		},
	}
}

// toMinorUnits converts a dollar amount to integer cents. Rounding keeps
// two-decimal inputs exact despite float representation (19.99 -> 1999).
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
