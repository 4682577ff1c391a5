package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	HeaderSecretHash = "verif-hash"
	HeaderSignature  = "flutterwave-signature"
)

// Verifier authenticates provider callbacks. A request passes when it carries
// the shared secret hash or a valid HMAC-SHA256 signature of the raw body.
type Verifier struct {
	secretHash    []byte
	signingSecret []byte
}

func NewVerifier(secretHash, signingSecret string) *Verifier {
	return &Verifier{secretHash: []byte(secretHash), signingSecret: []byte(signingSecret)}
}

// Verify fails closed and never says which credential was wrong.
func (v *Verifier) Verify(header http.Header, body []byte) error {
	if hash := header.Get(HeaderSecretHash); hash != "" && len(v.secretHash) > 0 {
		if subtle.ConstantTimeCompare([]byte(hash), v.secretHash) == 1 {
			return nil
		}
	}
	if sig := header.Get(HeaderSignature); sig != "" && len(v.signingSecret) > 0 {
		got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sig))
		if err == nil && hmac.Equal(got, Sign(v.signingSecret, body)) {
			return nil
		}
	}
	return domain.ErrAuthentication
}

func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

type payload struct {
	Event string `json:"event"`
	Data  struct {
		ID       json.Number     `json:"id"`
		TxRef    string          `json:"tx_ref"`
		FlwRef   string          `json:"flw_ref"`
		Status   string          `json:"status"`
		Currency string          `json:"currency"`
		Amount   decimal.Decimal `json:"amount"`
	} `json:"data"`
}

// Parse normalises a verified callback body into a PaymentEvent.
func Parse(body []byte) (domain.PaymentEvent, error) {
	var p payload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("%w: malformed webhook body", domain.ErrValidation)
	}
	return domain.PaymentEvent{
		Type:           p.Event,
		Reference:      p.Data.TxRef,
		SessionRef:     p.Data.FlwRef,
		TransactionRef: p.Data.ID.String(),
		Status:         strings.ToLower(p.Data.Status),
		Currency:       strings.ToUpper(p.Data.Currency),
		Amount:         p.Data.Amount,
	}, nil
}
