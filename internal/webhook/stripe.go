package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"
)

const (
	HeaderStripeSignature = "Stripe-Signature"

	statusPending = "pending"
)

// StripeVerifier authenticates Stripe event deliveries with the endpoint
// signing secret and maps checkout session events to PaymentEvents.
type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret}
}

func (v *StripeVerifier) Authenticate(header http.Header, body []byte) (domain.PaymentEvent, error) {
	sig := header.Get(HeaderStripeSignature)
	if v.secret == "" || sig == "" {
		return domain.PaymentEvent{}, domain.ErrAuthentication
	}

	event, err := stripewebhook.ConstructEventWithOptions(body, sig, v.secret, stripewebhook.ConstructEventOptions{
		Tolerance:                stripewebhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	switch {
	case errors.Is(err, stripewebhook.ErrNotSigned),
		errors.Is(err, stripewebhook.ErrNoValidSignature),
		errors.Is(err, stripewebhook.ErrTooOld),
		errors.Is(err, stripewebhook.ErrInvalidHeader):
		return domain.PaymentEvent{}, domain.ErrAuthentication
	case err != nil:
		return domain.PaymentEvent{}, fmt.Errorf("%w: malformed stripe event", domain.ErrValidation)
	}

	var status string
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		status = statusPending
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		status = domain.PaymentEventStatusFailed
	default:
		return domain.PaymentEvent{Type: string(event.Type)}, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("%w: malformed checkout session", domain.ErrValidation)
	}
	if status == statusPending && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		status = domain.PaymentEventStatusSuccessful
	}

	ref := sess.ClientReferenceID
	if ref == "" && sess.Metadata["order_id"] != "" {
		ref = domain.PaymentReferenceFor(sess.Metadata["order_id"])
	}
	var txRef string
	if sess.PaymentIntent != nil {
		txRef = sess.PaymentIntent.ID
	}

	return domain.PaymentEvent{
		Type:           domain.PaymentEventCompleted,
		Reference:      ref,
		SessionRef:     sess.ID,
		TransactionRef: txRef,
		Status:         status,
		Currency:       strings.ToUpper(string(sess.Currency)),
		Amount:         decimal.New(sess.AmountTotal, -2),
	}, nil
}

// Authenticate verifies a Flutterwave callback and parses it.
func (v *Verifier) Authenticate(header http.Header, body []byte) (domain.PaymentEvent, error) {
	if err := v.Verify(header, body); err != nil {
		return domain.PaymentEvent{}, err
	}
	return Parse(body)
}
