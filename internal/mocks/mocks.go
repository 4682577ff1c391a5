package mocks

import (
	"context"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/catalog"
	"checkout-service/internal/infra/payment"
	"checkout-service/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockOrderLedger struct {
	mock.Mock
}

type MockPaymentClient struct {
	mock.Mock
}

type MockStripeClient struct {
	mock.Mock
}

type MockCatalogClient struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, pattern string, data any) error {
	args := m.Called(ctx, pattern, data)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

func (m *MockNotifier) OrderConfirmation(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockNotifier) ShippingNotification(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockCatalogClient) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockPaymentClient) CreatePayment(ctx context.Context, req payment.CreatePaymentRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockStripeClient) CreateCheckoutSession(ctx context.Context, req payment.CheckoutSessionRequest) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

func (m *MockPaymentClient) VerifyTransaction(ctx context.Context, transactionID string) (*payment.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockOrderLedger) CreatePendingOrder(ctx context.Context, in repository.NewOrder) (*domain.Order, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderLedger) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderLedger) FindByExternalReference(ctx context.Context, ref string) (*domain.Order, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderLedger) FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderLedger) BindPaymentReferences(ctx context.Context, orderID, sessionRef, transactionRef string) (repository.BindResult, error) {
	args := m.Called(ctx, orderID, sessionRef, transactionRef)
	return args.Get(0).(repository.BindResult), args.Error(1)
}

func (m *MockOrderLedger) MarkPaymentFailed(ctx context.Context, orderID string) (repository.BindResult, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(repository.BindResult), args.Error(1)
}

func (m *MockOrderLedger) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, trackingNumber *string) (*domain.Order, error) {
	args := m.Called(ctx, orderID, from, to, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderLedger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
