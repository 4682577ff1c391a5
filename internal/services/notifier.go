package services

import (
	"context"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
)

// Notifier sends transactional email. Callers treat every error as
// non-fatal.
type Notifier interface {
	OrderConfirmation(ctx context.Context, order *domain.Order) error
	ShippingNotification(ctx context.Context, order *domain.Order) error
}

var _ Notifier = (*EmailNotifier)(nil)

// EmailNotifier hands email jobs to the mailer over the event broker.
type EmailNotifier struct {
	publisher infra.Publisher
}

func NewEmailNotifier(pub infra.Publisher) *EmailNotifier {
	return &EmailNotifier{publisher: pub}
}

func (n *EmailNotifier) OrderConfirmation(ctx context.Context, order *domain.Order) error {
	return n.publisher.Publish(ctx, domain.JobOrderConfirmationEmail, emailJob(domain.JobOrderConfirmationEmail, order))
}

func (n *EmailNotifier) ShippingNotification(ctx context.Context, order *domain.Order) error {
	job := emailJob(domain.JobShippingEmail, order)
	if order.TrackingNumber != nil {
		job.TrackingNumber = *order.TrackingNumber
	}
	return n.publisher.Publish(ctx, domain.JobShippingEmail, job)
}

func emailJob(template string, o *domain.Order) domain.EmailJob {
	return domain.EmailJob{
		Template:    template,
		To:          o.ShippingEmail,
		Name:        o.ShippingName,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Total:       o.Total,
		Currency:    o.Currency,
	}
}
