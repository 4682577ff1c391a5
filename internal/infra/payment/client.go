package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

var ErrGateway = domain.ErrGateway

type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phonenumber,omitempty"`
}

type Customizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo,omitempty"`
}

type CreatePaymentRequest struct {
	TxRef          string            `json:"tx_ref"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	RedirectURL    string            `json:"redirect_url"`
	PaymentOptions string            `json:"payment_options,omitempty"`
	Customer       Customer          `json:"customer"`
	Customizations Customizations    `json:"customizations"`
	Meta           map[string]string `json:"meta,omitempty"`
}

type createPaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// Transaction is the verified state of a charge as reported by the gateway.
type Transaction struct {
	ID       json.Number     `json:"id"`
	TxRef    string          `json:"tx_ref"`
	FlwRef   string          `json:"flw_ref"`
	Status   string          `json:"status"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type verifyResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    Transaction `json:"data"`
}

type ClientInterface interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (string, error)
	VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error)
}

var _ ClientInterface = (*Client)(nil)

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreatePayment opens a hosted payment page and returns its link.
func (c *Client) CreatePayment(ctx context.Context, in CreatePaymentRequest) (string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/payments", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out createPaymentResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.Status != "success" || strings.TrimSpace(out.Data.Link) == "" {
		return "", fmt.Errorf("%w: create payment: status=%q message=%q", ErrGateway, out.Status, out.Message)
	}
	if _, err := url.ParseRequestURI(out.Data.Link); err != nil {
		return "", fmt.Errorf("%w: create payment: malformed link", ErrGateway)
	}
	return out.Data.Link, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	u := fmt.Sprintf("%s/v3/transactions/%s/verify", c.baseURL, url.PathEscape(transactionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var out verifyResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.Status != "success" {
		return nil, fmt.Errorf("%w: verify: status=%q message=%q", ErrGateway, out.Status, out.Message)
	}
	return &out.Data, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, truncate(strings.TrimSpace(string(body)), 256))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
