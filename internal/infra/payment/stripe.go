package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

type CheckoutSessionRequest struct {
	Reference   string
	OrderID     string
	OrderNumber string
	Email       string
	Description string
	Amount      decimal.Decimal
	Currency    string
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type CheckoutSessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
}

var _ CheckoutSessionCreator = (*StripeClient)(nil)

// StripeClient opens Stripe Checkout sessions. Retries are left to the
// caller, which reuses the payment reference as the idempotency key.
type StripeClient struct {
	sessions session.Client
}

func NewStripeClient(secretKey, apiURL string, timeout time.Duration) *StripeClient {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if apiURL != "" {
		cfg.URL = stripe.String(strings.TrimRight(apiURL, "/"))
	}
	return &StripeClient{
		sessions: session.Client{B: stripe.GetBackendWithConfig(stripe.APIBackend, cfg), Key: secretKey},
	}
}

// MinorUnits converts a two-decimal amount to the integer unit Stripe bills in.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, in CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(in.Reference),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(in.Currency)),
				UnitAmount: stripe.Int64(MinorUnits(in.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(in.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	params.AddMetadata("order_id", in.OrderID)
	params.AddMetadata("order_number", in.OrderNumber)
	params.Context = ctx
	params.SetIdempotencyKey(in.Reference)

	s, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrGateway, err)
	}
	if strings.TrimSpace(s.URL) == "" {
		return nil, fmt.Errorf("%w: create checkout session: empty url", ErrGateway)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}
