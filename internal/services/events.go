package services

import (
	"context"
	"log/slog"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
)

const publishTimeout = 3 * time.Second

// publishEvent never fails the caller; broker errors are logged.
func publishEvent(ctx context.Context, pub infra.Publisher, pattern string, data any, orderID string) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := pub.Publish(ctx, pattern, data); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "pattern", pattern, "order_id", orderID, "error", err)
		return
	}
	slog.DebugContext(ctx, "published event", "pattern", pattern, "order_id", orderID)
}

func orderCreatedEvent(o *domain.Order) domain.OrderCreatedEvent {
	return domain.OrderCreatedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Total:       o.Total,
		Currency:    o.Currency,
		CreatedAt:   o.CreatedAt,
	}
}

func orderPaidEvent(o *domain.Order) domain.OrderPaidEvent {
	evt := domain.OrderPaidEvent{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		TransactionRef: o.TransactionRef(),
		Total:          o.Total,
		Currency:       o.Currency,
	}
	if o.PaidAt != nil {
		evt.PaidAt = *o.PaidAt
	}
	return evt
}
