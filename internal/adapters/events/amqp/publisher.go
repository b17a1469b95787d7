// Package amqp reenvía los eventos del registro a un exchange de RabbitMQ.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"pettrace/internal/domain/events"

	"github.com/streadway/amqp"
)

// channel es la parte de *amqp.Channel que usa el sink.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implementa events.Sink.
type Publisher struct {
	conn       io.Closer
	channel    channel
	exchange   string
	routingKey string
}

var _ events.Sink = (*Publisher)(nil)

// Dial conecta, abre un canal y declara el exchange (direct, durable).
func Dial(amqpURL, exchange, routingKey string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return newPublisher(conn, ch, exchange, routingKey), nil
}

func newPublisher(conn io.Closer, ch channel, exchange, routingKey string) *Publisher {
	return &Publisher{
		conn:       conn,
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
	}
}

func (p *Publisher) Name() string { return "amqp" }

// Deliver publica el evento como JSON persistente. El tipo va en Type para
// que los consumidores filtren sin parsear el body.
func (p *Publisher) Deliver(ctx context.Context, e events.RegistryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(events.NewEnvelope(e))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.Publish(
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID,
			Type:         string(e.Type),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", e.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	var errs []error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
