package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"

	"checkout-service/internal/config"
	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/catalog"
	"checkout-service/internal/metrics"
	"checkout-service/internal/pricing"
	"checkout-service/internal/repository"
)

type CheckoutRequest struct {
	UserID         string
	Items          []domain.LineItem
	Shipping       domain.ShippingDetails
	IdempotencyKey string
}

type CheckoutResult struct {
	RedirectURL string
	OrderID     string
	OrderNumber string
}

type CheckoutService struct {
	ledger     repository.OrderLedger
	calculator *pricing.Calculator
	payments   *PaymentSessionService
	catalog    catalog.ClientInterface
	publisher  infra.Publisher
	metrics    *metrics.ServerMetrics
	currency   string
	appURL     string
}

func NewCheckoutService(
	ledger repository.OrderLedger,
	calculator *pricing.Calculator,
	payments *PaymentSessionService,
	pub infra.Publisher,
	cfg config.Config,
	m *metrics.ServerMetrics,
) *CheckoutService {
	return &CheckoutService{
		ledger:     ledger,
		calculator: calculator,
		payments:   payments,
		publisher:  pub,
		metrics:    m,
		currency:   cfg.Currency,
		appURL:     cfg.AppURL,
	}
}

// SetCatalogClient enables the price check against the catalog service.
func (s *CheckoutService) SetCatalogClient(c catalog.ClientInterface) {
	s.catalog = c
}

// Checkout prices the cart, persists a PENDING order and opens a payment
// session for it. The order is durable before the gateway is called, so a
// gateway failure leaves it PENDING and a persistence failure means no
// session was ever requested.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if err := validateShipping(&req.Shipping); err != nil {
		s.metrics.CheckoutOutcome("invalid")
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.ledger.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.replay(ctx, existing)
		}
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	for i, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" || strings.TrimSpace(it.Name) == "" {
			s.metrics.CheckoutOutcome("invalid")
			return nil, fmt.Errorf("%w: item %d: id and name are required", domain.ErrValidation, i)
		}
		lines = append(lines, pricing.Line{UnitPrice: it.Price, Quantity: it.Quantity})
	}
	totals, err := s.calculator.Calculate(lines)
	if err != nil {
		s.metrics.CheckoutOutcome("invalid")
		return nil, err
	}
	if err := s.checkCatalog(ctx, req.Items); err != nil {
		s.metrics.CheckoutOutcome("invalid")
		return nil, err
	}

	order, err := s.ledger.CreatePendingOrder(ctx, repository.NewOrder{
		UserID:         req.UserID,
		Items:          req.Items,
		Totals:         totals,
		Currency:       s.currency,
		Shipping:       req.Shipping,
		IdempotencyKey: req.IdempotencyKey,
	})
	if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
		existing, findErr := s.ledger.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: idempotent order vanished", domain.ErrPersistence)
		}
		return s.replay(ctx, existing)
	}
	if err != nil {
		s.metrics.CheckoutOutcome("persistence_error")
		return nil, fmt.Errorf("%w: %w", domain.ErrCheckout, err)
	}

	slog.InfoContext(ctx, "order created",
		"order_id", order.ID, "order_number", order.OrderNumber, "reference", order.PaymentReference,
		"step", "create_order", "status", order.Status, "total", order.Total.StringFixed(2))
	publishEvent(ctx, s.publisher, domain.EventOrderCreated, orderCreatedEvent(order), order.ID)

	sess, err := s.payments.Initiate(ctx, order)
	if err != nil {
		s.metrics.CheckoutOutcome("gateway_error")
		return nil, err
	}
	slog.InfoContext(ctx, "payment session opened",
		"order_id", order.ID, "step", "initiate_payment", "session_ref", sess.ProviderSessionRef)

	s.metrics.CheckoutOutcome("ok")
	return &CheckoutResult{RedirectURL: sess.RedirectURL, OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

// replay answers a repeated Idempotency-Key with the order it created first.
func (s *CheckoutService) replay(ctx context.Context, order *domain.Order) (*CheckoutResult, error) {
	slog.InfoContext(ctx, "idempotent checkout replay", "order_id", order.ID, "order_number", order.OrderNumber, "step", "replay")
	res := &CheckoutResult{OrderID: order.ID, OrderNumber: order.OrderNumber}

	switch {
	case order.IsPaid():
		res.RedirectURL = s.appURL + "/success?reference=" + url.QueryEscape(order.PaymentReference)
	case order.PaymentStatus == domain.PaymentPending && order.Status == domain.StatusPending:
		sess, err := s.payments.Initiate(ctx, order)
		if err != nil {
			s.metrics.CheckoutOutcome("gateway_error")
			return nil, err
		}
		res.RedirectURL = sess.RedirectURL
	default:
		return nil, fmt.Errorf("%w: idempotency key already used by a %s order", domain.ErrValidation, strings.ToLower(string(order.PaymentStatus)))
	}

	s.metrics.CheckoutOutcome("replay")
	return res, nil
}

func (s *CheckoutService) checkCatalog(ctx context.Context, items []domain.LineItem) error {
	if s.catalog == nil {
		return nil
	}
	for _, it := range items {
		p, err := s.catalog.GetProduct(ctx, it.ProductID)
		if err != nil {
			slog.ErrorContext(ctx, "catalog lookup failed", "product_id", it.ProductID, "error", err)
			return fmt.Errorf("%w: catalog unavailable", domain.ErrCheckout)
		}
		if p == nil || !p.Active {
			return fmt.Errorf("%w: product %s is not available", domain.ErrValidation, it.ProductID)
		}
		if !p.Price.Equal(it.Price) {
			return fmt.Errorf("%w: price of %s changed to %s", domain.ErrValidation, it.ProductID, p.Price.StringFixed(2))
		}
	}
	return nil
}

func validateShipping(sd *domain.ShippingDetails) error {
	sd.Name = strings.TrimSpace(sd.Name)
	sd.Email = strings.TrimSpace(sd.Email)
	sd.Address = strings.TrimSpace(sd.Address)
	sd.City = strings.TrimSpace(sd.City)
	sd.State = strings.TrimSpace(sd.State)
	sd.Zip = strings.TrimSpace(sd.Zip)
	sd.Country = strings.ToUpper(strings.TrimSpace(sd.Country))
	if sd.Country == "" {
		sd.Country = "US"
	}

	switch {
	case len(sd.Name) < 2:
		return fmt.Errorf("%w: shipping name must be at least 2 characters", domain.ErrValidation)
	case !validEmail(sd.Email):
		return fmt.Errorf("%w: shipping email is invalid", domain.ErrValidation)
	case len(sd.Address) < 5:
		return fmt.Errorf("%w: shipping address must be at least 5 characters", domain.ErrValidation)
	case len(sd.City) < 2:
		return fmt.Errorf("%w: shipping city must be at least 2 characters", domain.ErrValidation)
	case len(sd.Zip) < 3:
		return fmt.Errorf("%w: shipping zip must be at least 3 characters", domain.ErrValidation)
	case len(sd.Country) != 2:
		return fmt.Errorf("%w: shipping country must be a 2-letter code", domain.ErrValidation)
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
