package services

import (
	"context"
	"testing"

	"checkout-service/internal/domain"
	"checkout-service/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestEmailNotifier(t *testing.T) {
	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, domain.JobOrderConfirmationEmail, mock.MatchedBy(func(j domain.EmailJob) bool {
		return j.To == "ada@example.com" && j.OrderNumber == TestOrderNo && j.TrackingNumber == ""
	})).Return(nil).Once()
	pub.On("Publish", mock.Anything, domain.JobShippingEmail, mock.MatchedBy(func(j domain.EmailJob) bool {
		return j.Template == domain.JobShippingEmail && j.TrackingNumber == "1Z999"
	})).Return(nil).Once()

	n := NewEmailNotifier(pub)
	order := CreatePaidOrder("9001")
	assert.NoError(t, n.OrderConfirmation(context.Background(), order))

	tracking := "1Z999"
	order.TrackingNumber = &tracking
	assert.NoError(t, n.ShippingNotification(context.Background(), order))
	pub.AssertExpectations(t)
}
