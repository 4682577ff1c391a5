package repository

import (
	"context"
	"errors"

	"checkout-service/internal/domain"
	"checkout-service/internal/pricing"
)

// ErrDuplicateIdempotencyKey is returned by CreatePendingOrder when the same
// user already created an order with the same idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// NewOrder carries everything needed to persist a PENDING order.
type NewOrder struct {
	UserID         string
	Items          []domain.LineItem
	Totals         pricing.Totals
	Currency       string
	Shipping       domain.ShippingDetails
	IdempotencyKey string
}

// BindResult reports whether BindPaymentReferences changed the order or
// recognised a duplicate delivery.
type BindResult struct {
	Order   *domain.Order
	Applied bool
}

// OrderLedger is the persistence boundary for orders. Lookups return
// (nil, nil) when nothing matches.
type OrderLedger interface {
	CreatePendingOrder(ctx context.Context, in NewOrder) (*domain.Order, error)
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByExternalReference(ctx context.Context, ref string) (*domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	BindPaymentReferences(ctx context.Context, orderID, sessionRef, transactionRef string) (BindResult, error)
	MarkPaymentFailed(ctx context.Context, orderID string) (BindResult, error)
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, trackingNumber *string) (*domain.Order, error)
	Ping(ctx context.Context) error
}
