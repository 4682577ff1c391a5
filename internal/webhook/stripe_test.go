package webhook

import (
	"net/http"
	"testing"
	"time"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"
)

const stripeSecret = "whsec_test"

func stripeEvent(typ, object string) []byte {
	return []byte(`{"id":"evt_1","object":"event","api_version":"2024-06-20","type":"` + typ + `","data":{"object":` + object + `}}`)
}

const paidSession = `{"id":"cs_test_1","object":"checkout.session","client_reference_id":"chk_order-1","payment_intent":"pi_1","payment_status":"paid","currency":"usd","amount_total":22000,"metadata":{"order_id":"order-1"}}`

func signedHeader(t *testing.T, body []byte, secret string, at time.Time) http.Header {
	t.Helper()
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: at,
	})
	h := http.Header{}
	h.Set(HeaderStripeSignature, signed.Header)
	return h
}

func TestStripeVerifier_Authenticate(t *testing.T) {
	v := NewStripeVerifier(stripeSecret)

	tests := []struct {
		name      string
		body      []byte
		secret    string
		at        time.Time
		noHeader  bool
		want      domain.PaymentEvent
		wantErr   error
		checkType string
	}{
		{
			name:   "paid session",
			body:   stripeEvent("checkout.session.completed", paidSession),
			secret: stripeSecret,
			at:     time.Now(),
			want: domain.PaymentEvent{
				Type:           domain.PaymentEventCompleted,
				Reference:      "chk_order-1",
				SessionRef:     "cs_test_1",
				TransactionRef: "pi_1",
				Status:         domain.PaymentEventStatusSuccessful,
				Currency:       "USD",
				Amount:         decimal.NewFromInt(220),
			},
		},
		{
			name:   "unpaid session waits for async result",
			body:   stripeEvent("checkout.session.completed", `{"id":"cs_test_2","object":"checkout.session","client_reference_id":"chk_order-2","payment_status":"unpaid","currency":"usd","amount_total":500}`),
			secret: stripeSecret,
			at:     time.Now(),
			want: domain.PaymentEvent{
				Type:       domain.PaymentEventCompleted,
				Reference:  "chk_order-2",
				SessionRef: "cs_test_2",
				Status:     "pending",
				Currency:   "USD",
				Amount:     decimal.NewFromInt(5),
			},
		},
		{
			name:   "async failure falls back to metadata order id",
			body:   stripeEvent("checkout.session.async_payment_failed", `{"id":"cs_test_3","object":"checkout.session","payment_status":"unpaid","currency":"usd","amount_total":1000,"metadata":{"order_id":"order-3"}}`),
			secret: stripeSecret,
			at:     time.Now(),
			want: domain.PaymentEvent{
				Type:       domain.PaymentEventCompleted,
				Reference:  "chk_order-3",
				SessionRef: "cs_test_3",
				Status:     domain.PaymentEventStatusFailed,
				Currency:   "USD",
				Amount:     decimal.NewFromInt(10),
			},
		},
		{
			name:      "unrelated event type passes through",
			body:      stripeEvent("customer.created", `{"id":"cus_1","object":"customer"}`),
			secret:    stripeSecret,
			at:        time.Now(),
			checkType: "customer.created",
		},
		{
			name:    "wrong secret",
			body:    stripeEvent("checkout.session.completed", paidSession),
			secret:  "whsec_other",
			at:      time.Now(),
			wantErr: domain.ErrAuthentication,
		},
		{
			name:    "stale timestamp",
			body:    stripeEvent("checkout.session.completed", paidSession),
			secret:  stripeSecret,
			at:      time.Now().Add(-time.Hour),
			wantErr: domain.ErrAuthentication,
		},
		{
			name:     "missing header",
			body:     stripeEvent("checkout.session.completed", paidSession),
			noHeader: true,
			wantErr:  domain.ErrAuthentication,
		},
		{
			name:    "signed but not json",
			body:    []byte(`not json`),
			secret:  stripeSecret,
			at:      time.Now(),
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if !tt.noHeader {
				h = signedHeader(t, tt.body, tt.secret, tt.at)
			}

			got, err := v.Authenticate(h, tt.body)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.checkType != "" {
				assert.Equal(t, tt.checkType, got.Type)
				assert.Empty(t, got.Reference)
				return
			}
			assert.Equal(t, tt.want.Type, got.Type)
			assert.Equal(t, tt.want.Reference, got.Reference)
			assert.Equal(t, tt.want.SessionRef, got.SessionRef)
			assert.Equal(t, tt.want.TransactionRef, got.TransactionRef)
			assert.Equal(t, tt.want.Status, got.Status)
			assert.Equal(t, tt.want.Currency, got.Currency)
			assert.True(t, tt.want.Amount.Equal(got.Amount), "amount %s", got.Amount)
		})
	}
}

func TestStripeVerifier_EmptySecretRejects(t *testing.T) {
	body := stripeEvent("checkout.session.completed", paidSession)
	h := signedHeader(t, body, "", time.Now())
	_, err := NewStripeVerifier("").Authenticate(h, body)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestVerifier_Authenticate(t *testing.T) {
	v := NewVerifier("s3cret-hash", "")
	h := http.Header{}
	h.Set(HeaderSecretHash, "s3cret-hash")
	evt, err := v.Authenticate(h, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, "chk_order-1", evt.Reference)

	_, err = v.Authenticate(http.Header{}, []byte(body))
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}
