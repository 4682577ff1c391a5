package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"checkout-service/internal/domain"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &Publisher{w: w}

	err := p.Publish(context.Background(), domain.EventOrderCreated, domain.OrderCreatedEvent{OrderID: "o-1", OrderNumber: "ORD-1"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, domain.EventOrderCreated, msg.Topic)
	assert.Equal(t, "o-1", string(msg.Key))

	var evt domain.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	assert.Equal(t, "ORD-1", evt.OrderNumber)
}

func TestPublisher_PublishError(t *testing.T) {
	p := &Publisher{w: &recordingWriter{err: errors.New("leader not available")}}
	err := p.Publish(context.Background(), domain.EventOrderPaid, map[string]string{})
	assert.ErrorContains(t, err, "leader not available")
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, ParseBrokers(" k1:9092, ,k2:9092 "))
	assert.Empty(t, ParseBrokers(""))

	_, err := NewPublisher(" , ")
	assert.Error(t, err)
}
