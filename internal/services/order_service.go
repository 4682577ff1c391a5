package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
)

// OrderService serves order reads and administrative fulfilment.
type OrderService struct {
	ledger   repository.OrderLedger
	notifier Notifier
}

func NewOrderService(ledger repository.OrderLedger, notifier Notifier) *OrderService {
	return &OrderService{
		ledger:   ledger,
		notifier: notifier,
	}
}

// GetOrderByID is visible to the owner and to admins.
func (u *OrderService) GetOrderByID(ctx context.Context, id string, caller domain.Principal) (*domain.Order, error) {
	o, err := u.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	if o.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

// GetOrderByReference backs the post-payment success page, so only the owner
// may read it. Other callers get not found rather than forbidden.
func (u *OrderService) GetOrderByReference(ctx context.Context, ref string, caller domain.Principal) (*domain.Order, error) {
	o, err := u.ledger.FindByExternalReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != caller.UserID {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// UpdateStatus moves an order along the fulfilment lifecycle. Shipping needs
// a tracking number and triggers a best-effort shipping email.
func (u *OrderService) UpdateStatus(ctx context.Context, id string, to domain.OrderStatus, trackingNumber string) (*domain.Order, error) {
	current, err := u.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !current.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, current.Status, to)
	}

	var tracking *string
	if t := strings.TrimSpace(trackingNumber); t != "" {
		tracking = &t
	}
	if to == domain.StatusShipped && tracking == nil {
		return nil, fmt.Errorf("%w: tracking number is required to ship", domain.ErrValidation)
	}

	updated, err := u.ledger.UpdateStatus(ctx, id, current.Status, to, tracking)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "order status updated",
		"order_id", updated.ID, "order_number", updated.OrderNumber, "step", "fulfilment", "status", updated.Status)

	if to == domain.StatusShipped {
		if err := u.notifier.ShippingNotification(ctx, updated); err != nil {
			slog.WarnContext(ctx, "shipping notification failed", "order_id", updated.ID, "error", err)
		}
	}
	return updated, nil
}

func (u *OrderService) Ping(ctx context.Context) error {
	return u.ledger.Ping(ctx)
}
