package http

import (
	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID        string          `json:"id" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	Thumbnail *string         `json:"thumbnail"`
}

type ShippingAddress struct {
	Name    string `json:"name" binding:"required,min=2"`
	Email   string `json:"email" binding:"required,email"`
	Address string `json:"address" binding:"required,min=5"`
	City    string `json:"city" binding:"required,min=2"`
	State   string `json:"state"`
	Zip     string `json:"zip" binding:"required,min=3"`
	Country string `json:"country"`
}

type CheckoutRequest struct {
	Items           []CartItem      `json:"items" binding:"required,min=1,dive"`
	ShippingAddress ShippingAddress `json:"shippingAddress" binding:"required"`
}

type CheckoutResponse struct {
	RedirectURL string `json:"redirectUrl"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

type UpdateStatusRequest struct {
	Status         domain.OrderStatus `json:"status" binding:"required,oneof=PENDING PROCESSING SHIPPED DELIVERED CANCELLED"`
	TrackingNumber string             `json:"trackingNumber"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

func (r CheckoutRequest) lineItems() []domain.LineItem {
	items := make([]domain.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.LineItem{
			ProductID: it.ID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Image:     it.Thumbnail,
		})
	}
	return items
}

func (a ShippingAddress) details() domain.ShippingDetails {
	return domain.ShippingDetails{
		Name:    a.Name,
		Email:   a.Email,
		Address: a.Address,
		City:    a.City,
		State:   a.State,
		Zip:     a.Zip,
		Country: a.Country,
	}
}
