package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/infra"

	"github.com/segmentio/kafka-go"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ infra.Publisher = (*Publisher)(nil)

// Publisher writes each message to the topic named by its pattern, keyed by
// order so one order's events stay on one partition.
type Publisher struct {
	w writer
}

func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewPublisher(brokersCSV string) (*Publisher, error) {
	brokers := ParseBrokers(brokersCSV)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers in %q", brokersCSV)
	}
	return &Publisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}, nil
}

func (p *Publisher) Publish(ctx context.Context, pattern string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	msg := kafka.Message{
		Topic: pattern,
		Key:   []byte(infra.KeyOf(data)),
		Value: body,
		Time:  time.Now().UTC(),
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
