package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"checkout-service/internal/domain"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	ch := new(mockChannel)
	var sent amqp.Publishing
	ch.On("Publish", "order.exchange", domain.EventOrderPaid, false, false, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) { sent = args.Get(4).(amqp.Publishing) })

	p := &Publisher{channel: ch, exchange: "order.exchange"}
	err := p.Publish(context.Background(), domain.EventOrderPaid, domain.OrderPaidEvent{OrderID: "o-1", TransactionRef: "9001"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", sent.ContentType)
	assert.Equal(t, "o-1", sent.CorrelationId)
	assert.NotEmpty(t, sent.MessageId)

	var msg struct {
		Pattern string         `json:"pattern"`
		Data    map[string]any `json:"data"`
		ID      string         `json:"id"`
	}
	require.NoError(t, json.Unmarshal(sent.Body, &msg))
	assert.Equal(t, domain.EventOrderPaid, msg.Pattern)
	assert.Equal(t, "9001", msg.Data["transactionRef"])
	assert.Equal(t, sent.MessageId, msg.ID)
	ch.AssertExpectations(t)
}

func TestPublisher_PublishError(t *testing.T) {
	ch := new(mockChannel)
	ch.On("Publish", mock.Anything, mock.Anything, false, false, mock.Anything).Return(errors.New("channel closed"))

	p := &Publisher{channel: ch, exchange: "order.exchange"}
	err := p.Publish(context.Background(), "email.order_confirmation", map[string]string{"to": "a@b.c"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}
