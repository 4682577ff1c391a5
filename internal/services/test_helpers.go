package services

import (
	"time"

	"checkout-service/internal/config"
	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	TestUserID     = "user-1"
	TestOrderID    = "7d9f3c1e-0000-4000-8000-000000000001"
	TestOrderNo    = "ORD-20261017-0A1B2C3D4E"
	TestPaymentURL = "https://checkout.example.com/pay/abc"
)

func CreateMockOrder(status domain.OrderStatus, paymentStatus domain.PaymentStatus) *domain.Order {
	return &domain.Order{
		ID:               TestOrderID,
		OrderNumber:      TestOrderNo,
		UserID:           TestUserID,
		Subtotal:         decimal.RequireFromString("200"),
		Tax:              decimal.RequireFromString("20"),
		Shipping:         decimal.Zero,
		Total:            decimal.RequireFromString("220"),
		Currency:         "USD",
		Status:           status,
		PaymentStatus:    paymentStatus,
		PaymentReference: domain.PaymentReferenceFor(TestOrderID),
		ShippingName:     "Ada Lovelace",
		ShippingEmail:    "ada@example.com",
		CreatedAt:        time.Now(),
	}
}

func CreatePaidOrder(transactionRef string) *domain.Order {
	o := CreateMockOrder(domain.StatusProcessing, domain.PaymentPaid)
	now := time.Now()
	o.ProviderTransactionRef = &transactionRef
	o.PaidAt = &now
	return o
}

func NewTestConfig() config.Config {
	cfg := config.Default()
	cfg.AppURL = "https://shop.example.com"
	cfg.PublicURL = "https://api.shop.example.com"
	cfg.Gateway.SecretKey = "sk_test"
	cfg.Gateway.Timeout = time.Second
	cfg.Webhook.SecretHash = "s3cret-hash"
	cfg.Webhook.SigningSecret = "signing-key"
	return cfg
}

func SampleShipping() domain.ShippingDetails {
	return domain.ShippingDetails{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Address: "12 Analytical St",
		City:    "London",
		State:   "LDN",
		Zip:     "N1 9GU",
		Country: "gb",
	}
}

func SampleItems() []domain.LineItem {
	return []domain.LineItem{
		{ProductID: "prod-1", Name: "Mug", Price: decimal.RequireFromString("100.00"), Quantity: 2},
	}
}
