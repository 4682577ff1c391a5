package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated = "order.created"
	EventOrderPaid    = "order.paid"

	JobOrderConfirmationEmail = "email.order_confirmation"
	JobShippingEmail          = "email.shipping_notification"
)

type OrderCreatedEvent struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      string          `json:"userId"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type OrderPaidEvent struct {
	OrderID        string          `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	TransactionRef string          `json:"transactionRef"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	PaidAt         time.Time       `json:"paidAt"`
}

// PaymentEvent is a provider callback normalised for reconciliation.
type PaymentEvent struct {
	Type           string
	Reference      string
	SessionRef     string
	TransactionRef string
	Status         string
	Currency       string
	Amount         decimal.Decimal
}

const (
	PaymentEventCompleted = "charge.completed"

	PaymentEventStatusSuccessful = "successful"
	PaymentEventStatusFailed     = "failed"
)

func (e OrderCreatedEvent) MessageKey() string { return e.OrderID }
func (e OrderPaidEvent) MessageKey() string    { return e.OrderID }

// EmailJob asks the mailer to send a templated transactional email.
type EmailJob struct {
	Template       string          `json:"template"`
	To             string          `json:"to"`
	Name           string          `json:"name"`
	OrderID        string          `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	TrackingNumber string          `json:"trackingNumber,omitempty"`
}

func (j EmailJob) MessageKey() string { return j.OrderID }
