package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Handler processes one delivery. Returning false requeues it.
type Handler func(body []byte) bool

type Consumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger zerolog.Logger
}

func NewConsumer(amqpURL string, logger zerolog.Logger) (*Consumer, error) {
	cleanURL, err := SanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch, logger: logger}, nil
}

// ConsumeWithBindings binds queueName to exchange once per routing key and
// dispatches deliveries to the matching handler in a background goroutine.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]Handler) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	handlers := make(map[string]Handler)
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			dispatch(c.logger, handlers, d)
		}
		c.logger.Warn().Str("queue", q.Name).Msg("delivery channel closed")
	}()

	return nil
}

// acknowledger is the part of amqp.Delivery dispatch needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func dispatch(logger zerolog.Logger, handlers map[string]Handler, d amqp.Delivery) {
	route(logger, handlers, d.RoutingKey, d.Body, d)
}

func route(logger zerolog.Logger, handlers map[string]Handler, routingKey string, body []byte, ack acknowledger) {
	handler, ok := handlers[routingKey]
	if !ok {
		logger.Warn().Str("routing_key", routingKey).Msg("no handler for routing key; acknowledging to drop")
		_ = ack.Ack(false)
		return
	}
	if handler(body) {
		_ = ack.Ack(false)
		return
	}
	logger.Warn().Str("routing_key", routingKey).Msg("handler failed; re-queuing")
	_ = ack.Nack(false, true)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
