package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewOrderStore(db *gorm.DB) repository.OrderLedger {
	return &orderStore{db: db, now: time.Now}
}

func (r *orderStore) CreatePendingOrder(ctx context.Context, in repository.NewOrder) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", domain.ErrValidation)
	}

	now := r.now().UTC()
	id := uuid.NewString()
	order := &domain.Order{
		ID:               id,
		OrderNumber:      newOrderNumber(now),
		UserID:           in.UserID,
		Subtotal:         in.Totals.Subtotal,
		Tax:              in.Totals.Tax,
		Shipping:         in.Totals.Shipping,
		Total:            in.Totals.Total,
		Currency:         in.Currency,
		Status:           domain.StatusPending,
		PaymentStatus:    domain.PaymentPending,
		PaymentReference: domain.PaymentReferenceFor(id),
		ShippingName:     in.Shipping.Name,
		ShippingEmail:    in.Shipping.Email,
		ShippingAddress:  in.Shipping.Address,
		ShippingCity:     in.Shipping.City,
		ShippingState:    in.Shipping.State,
		ShippingZip:      in.Shipping.Zip,
		ShippingCountry:  in.Shipping.Country,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.IdempotencyKey != "" {
		key, user := in.IdempotencyKey, in.UserID
		order.IdempotencyKey = &key
		order.IdempotencyUser = &user
	}

	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, domain.OrderItem{
			OrderID:      id,
			ProductID:    it.ProductID,
			ProductName:  it.Name,
			ProductImage: it.Image,
			Quantity:     it.Quantity,
			Price:        it.Price,
			CreatedAt:    now,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return err
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		if in.IdempotencyKey != "" && isUniqueViolation(err) {
			return nil, repository.ErrDuplicateIdempotencyKey
		}
		slog.ErrorContext(ctx, "create order failed", "order_id", id, "error", err)
		return nil, fmt.Errorf("%w: create order: %v", domain.ErrPersistence, err)
	}

	order.Items = items
	return order, nil
}

func (r *orderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *orderStore) FindByExternalReference(ctx context.Context, ref string) (*domain.Order, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, nil
	}
	return r.findOne(ctx, "payment_reference = ? OR provider_session_ref = ?", ref, ref)
}

func (r *orderStore) FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	return r.findOne(ctx, "idempotency_user = ? AND idempotency_key = ?", userID, key)
}

func (r *orderStore) findOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).Preload("Items").Where(query, args...).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: find order: %v", domain.ErrPersistence, err)
	}
	return &o, nil
}

// BindPaymentReferences applies a successful payment exactly once. The
// conditional UPDATE is the serialisation point: only a PENDING order with no
// bound transaction can move to PAID/PROCESSING.
func (r *orderStore) BindPaymentReferences(ctx context.Context, orderID, sessionRef, transactionRef string) (repository.BindResult, error) {
	if strings.TrimSpace(transactionRef) == "" {
		return repository.BindResult{}, fmt.Errorf("%w: transaction reference required", domain.ErrValidation)
	}

	now := r.now().UTC()
	updates := map[string]any{
		"provider_transaction_ref": transactionRef,
		"payment_status":           domain.PaymentPaid,
		"status":                   domain.StatusProcessing,
		"paid_at":                  now,
		"updated_at":               now,
	}
	if sessionRef != "" {
		updates["provider_session_ref"] = sessionRef
	}

	res := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND payment_status = ? AND status = ? AND provider_transaction_ref IS NULL",
			orderID, domain.PaymentPending, domain.StatusPending).
		Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return repository.BindResult{}, fmt.Errorf("%w: transaction %s already bound to another order", domain.ErrConflict, transactionRef)
		}
		return repository.BindResult{}, fmt.Errorf("%w: bind payment: %v", domain.ErrPersistence, res.Error)
	}

	current, err := r.FindByID(ctx, orderID)
	if err != nil {
		return repository.BindResult{}, err
	}
	if current == nil {
		return repository.BindResult{}, domain.ErrOrderNotFound
	}
	if res.RowsAffected == 1 {
		return repository.BindResult{Order: current, Applied: true}, nil
	}

	switch {
	case current.IsPaid() && current.TransactionRef() == transactionRef:
		return repository.BindResult{Order: current}, nil
	case current.IsPaid():
		return repository.BindResult{Order: current}, fmt.Errorf("%w: order %s already paid by transaction %s, got %s",
			domain.ErrConflict, orderID, current.TransactionRef(), transactionRef)
	default:
		return repository.BindResult{Order: current}, fmt.Errorf("%w: order %s is %s/%s",
			domain.ErrConflict, orderID, current.Status, current.PaymentStatus)
	}
}

func (r *orderStore) MarkPaymentFailed(ctx context.Context, orderID string) (repository.BindResult, error) {
	res := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND payment_status = ?", orderID, domain.PaymentPending).
		Updates(map[string]any{
			"payment_status": domain.PaymentFailed,
			"updated_at":     r.now().UTC(),
		})
	if res.Error != nil {
		return repository.BindResult{}, fmt.Errorf("%w: mark payment failed: %v", domain.ErrPersistence, res.Error)
	}

	current, err := r.FindByID(ctx, orderID)
	if err != nil {
		return repository.BindResult{}, err
	}
	if current == nil {
		return repository.BindResult{}, domain.ErrOrderNotFound
	}
	return repository.BindResult{Order: current, Applied: res.RowsAffected == 1}, nil
}

func (r *orderStore) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, trackingNumber *string) (*domain.Order, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": r.now().UTC(),
	}
	if trackingNumber != nil {
		updates["tracking_number"] = *trackingNumber
	}

	res := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("%w: update status: %v", domain.ErrPersistence, res.Error)
	}

	current, err := r.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrOrderNotFound
	}
	if res.RowsAffected == 0 {
		return current, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, orderID, current.Status)
	}
	return current, nil
}

func (r *orderStore) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// newOrderNumber is human readable and collision resistant: the date plus 40
// random bits, backed by the unique index on order_number.
func newOrderNumber(now time.Time) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + now.Format("20060102") + "-" + raw[:10]
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
