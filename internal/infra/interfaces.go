package infra

import (
	"context"
	"log/slog"
)

// Publisher delivers a JSON message under a routing pattern. Implementations
// exist for RabbitMQ and Kafka.
type Publisher interface {
	Publish(ctx context.Context, pattern string, data any) error
	Close() error
}

// Keyed messages choose their own partition or correlation key.
type Keyed interface {
	MessageKey() string
}

var _ Publisher = NopPublisher{}

// NopPublisher is used when EVENT_BROKER=none.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, pattern string, _ any) error {
	slog.DebugContext(ctx, "event dropped, no broker configured", "pattern", pattern)
	return nil
}

func (NopPublisher) Close() error { return nil }

func KeyOf(data any) string {
	if k, ok := data.(Keyed); ok {
		return k.MessageKey()
	}
	return ""
}
