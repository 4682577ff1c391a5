package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Order is the durable record of one checkout attempt. Monetary fields are
// fixed at creation; Items is a frozen snapshot of the cart.
type Order struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber string `json:"orderNumber" gorm:"type:varchar(32);not null;uniqueIndex"`
	UserID      string `json:"userId" gorm:"type:varchar(64);not null;index"`

	Subtotal decimal.Decimal `json:"subtotal" gorm:"type:decimal(14,4);not null"`
	Tax      decimal.Decimal `json:"tax" gorm:"type:decimal(14,4);not null"`
	Shipping decimal.Decimal `json:"shipping" gorm:"type:decimal(14,4);not null"`
	Total    decimal.Decimal `json:"total" gorm:"type:decimal(14,4);not null"`
	Currency string          `json:"currency" gorm:"type:varchar(3);not null"`

	Status        OrderStatus   `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index"`
	PaymentStatus PaymentStatus `json:"paymentStatus" gorm:"type:varchar(16);not null;default:'PENDING';index"`

	// PaymentReference is the caller-chosen provider reference, derived from ID.
	PaymentReference string `json:"paymentReference" gorm:"type:varchar(64);not null;uniqueIndex"`
	// ProviderSessionRef and ProviderTransactionRef are bound once by reconciliation.
	ProviderSessionRef     *string `json:"providerSessionRef,omitempty" gorm:"type:varchar(128);uniqueIndex"`
	ProviderTransactionRef *string `json:"providerTransactionRef,omitempty" gorm:"type:varchar(128);uniqueIndex"`

	// IdempotencyKey is scoped per user; nil when the client sent none.
	IdempotencyKey  *string `json:"-" gorm:"type:varchar(128);uniqueIndex:ux_orders_user_idempotency,priority:2"`
	IdempotencyUser *string `json:"-" gorm:"type:varchar(64);uniqueIndex:ux_orders_user_idempotency,priority:1"`

	ShippingName    string `json:"shippingName" gorm:"type:varchar(255);not null"`
	ShippingEmail   string `json:"shippingEmail" gorm:"type:varchar(255);not null"`
	ShippingAddress string `json:"shippingAddress" gorm:"type:varchar(255);not null"`
	ShippingCity    string `json:"shippingCity" gorm:"type:varchar(128);not null"`
	ShippingState   string `json:"shippingState" gorm:"type:varchar(128)"`
	ShippingZip     string `json:"shippingZip" gorm:"type:varchar(32);not null"`
	ShippingCountry string `json:"shippingCountry" gorm:"type:varchar(2);not null"`

	TrackingNumber *string `json:"trackingNumber,omitempty" gorm:"type:varchar(128)"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`

	PaidAt    *time.Time `json:"paidAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

// OrderItem is a snapshot of one cart line. ProductID is a weak reference:
// name, image and price are copied so catalog edits never change history.
type OrderItem struct {
	ID           uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID      string          `json:"orderId" gorm:"type:varchar(36);not null;index"`
	ProductID    string          `json:"productId" gorm:"type:varchar(64);not null;index"`
	ProductName  string          `json:"productName" gorm:"type:varchar(255);not null"`
	ProductImage *string         `json:"productImage,omitempty" gorm:"type:varchar(512)"`
	Quantity     int             `json:"quantity" gorm:"not null"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(14,4);not null"`
	CreatedAt    time.Time       `json:"createdAt" gorm:"autoCreateTime"`
}

// ShippingDetails is copied onto the order at creation.
type ShippingDetails struct {
	Name    string
	Email   string
	Address string
	City    string
	State   string
	Zip     string
	Country string
}

// LineItem is one cart line as submitted by the client.
type LineItem struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Image     *string
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

func (o *Order) TransactionRef() string {
	if o.ProviderTransactionRef == nil {
		return ""
	}
	return *o.ProviderTransactionRef
}

// CanTransition reports whether an administrative fulfilment move is allowed.
func (o *Order) CanTransition(to OrderStatus) bool {
	switch o.Status {
	case StatusPending:
		return to == StatusCancelled
	case StatusProcessing:
		return to == StatusShipped || to == StatusCancelled
	case StatusShipped:
		return to == StatusDelivered
	}
	return false
}

// PaymentReferenceFor derives the provider reference from the order id, so a
// retried payment initiation for one order always reuses the same reference.
func PaymentReferenceFor(orderID string) string {
	return "chk_" + orderID
}

const RoleAdmin = "admin"

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
