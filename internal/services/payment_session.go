package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"checkout-service/internal/config"
	"checkout-service/internal/domain"
	"checkout-service/internal/infra/payment"
	"checkout-service/internal/metrics"
)

// PaymentSession is where to send the customer and the provider's handle
// for the hosted page.
type PaymentSession struct {
	RedirectURL        string
	ProviderSessionRef string
}

// PaymentSessionService opens a hosted payment page for a PENDING order. It
// never writes to the ledger: a failed initiation leaves the order PENDING
// and the checkout can be retried with the same reference.
type PaymentSessionService struct {
	client    payment.ClientInterface
	stripe    payment.CheckoutSessionCreator
	gateway   config.GatewayConfig
	appURL    string
	publicURL string
	metrics   *metrics.ServerMetrics
}

func NewPaymentSessionService(client payment.ClientInterface, cfg config.Config, m *metrics.ServerMetrics) *PaymentSessionService {
	return &PaymentSessionService{
		client:    client,
		gateway:   cfg.Gateway,
		appURL:    cfg.AppURL,
		publicURL: cfg.PublicURL,
		metrics:   m,
	}
}

// SetStripeClient routes new sessions through Stripe Checkout.
func (s *PaymentSessionService) SetStripeClient(c payment.CheckoutSessionCreator) {
	s.stripe = c
}

func (s *PaymentSessionService) Initiate(ctx context.Context, order *domain.Order) (*PaymentSession, error) {
	if order == nil || order.PaymentStatus != domain.PaymentPending {
		return nil, fmt.Errorf("%w: order is not awaiting payment", domain.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.gateway.Timeout)
	defer cancel()

	op, open := "create_payment", s.flutterwave
	if s.stripe != nil {
		op, open = "create_checkout_session", s.stripeCheckout
	}

	start := time.Now()
	sess, err := open(ctx, order)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		s.metrics.ObserveGateway(op, "error", elapsed)
		slog.ErrorContext(ctx, "payment session initiation failed",
			"order_id", order.ID, "reference", order.PaymentReference, "step", "initiate_payment", "error", err)
		if !errors.Is(err, domain.ErrGateway) {
			err = fmt.Errorf("%w: %v", domain.ErrGateway, err)
		}
		return nil, err
	}
	s.metrics.ObserveGateway(op, "ok", elapsed)
	return sess, nil
}

func (s *PaymentSessionService) flutterwave(ctx context.Context, order *domain.Order) (*PaymentSession, error) {
	link, err := s.client.CreatePayment(ctx, payment.CreatePaymentRequest{
		TxRef:          order.PaymentReference,
		Amount:         order.Total,
		Currency:       order.Currency,
		RedirectURL:    s.publicURL + "/webhooks/payment/verify",
		PaymentOptions: s.gateway.PaymentOptions,
		Customer: payment.Customer{
			Email: order.ShippingEmail,
			Name:  order.ShippingName,
		},
		Customizations: payment.Customizations{
			Title:       s.gateway.Title,
			Description: "Order " + order.OrderNumber,
			Logo:        s.appURL + "/logo.png",
		},
		Meta: map[string]string{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		},
	})
	if err != nil {
		return nil, err
	}
	return &PaymentSession{RedirectURL: link, ProviderSessionRef: order.PaymentReference}, nil
}

func (s *PaymentSessionService) stripeCheckout(ctx context.Context, order *domain.Order) (*PaymentSession, error) {
	cs, err := s.stripe.CreateCheckoutSession(ctx, payment.CheckoutSessionRequest{
		Reference:   order.PaymentReference,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       order.ShippingEmail,
		Description: "Order " + order.OrderNumber,
		Amount:      order.Total,
		Currency:    order.Currency,
		SuccessURL:  s.appURL + "/success?reference=" + url.QueryEscape(order.PaymentReference),
		CancelURL:   s.appURL + "/cart",
	})
	if err != nil {
		return nil, err
	}
	return &PaymentSession{RedirectURL: cs.URL, ProviderSessionRef: cs.ID}, nil
}
