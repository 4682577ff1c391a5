package rabbitmq

import (
	"checkout-service/internal/infra"

	"github.com/streadway/amqp"
)

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var (
	_ infra.Publisher = (*Publisher)(nil)
	_ channel         = (*amqp.Channel)(nil)
)
