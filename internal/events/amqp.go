package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Bahdan321/Study-Practice-3-course/internal/logger"
)

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp091.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPPublisher publishes ledger events to a durable direct exchange, using
// the event type as routing key.
type AMQPPublisher struct {
	conn         *amqp091.Connection
	channel      channel
	exchangeName string
	queueName    string
	log          *zap.SugaredLogger
}

// NewAMQPPublisher dials the broker, then declares the exchange and a durable
// queue bound to every ledger event type.
func NewAMQPPublisher(url, exchangeName, queueName string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(ch, exchangeName, queueName); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	p := newAMQPPublisher(ch, exchangeName, queueName)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch channel, exchangeName, queueName string) *AMQPPublisher {
	return &AMQPPublisher{
		channel:      ch,
		exchangeName: exchangeName,
		queueName:    queueName,
		log:          logger.Named("events"),
	}
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	for _, t := range AllTypes {
		if err := ch.QueueBind(queueName, string(t), exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue to %s: %w", t, err)
		}
	}
	return nil
}

// Publish sends the event as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, event LedgerEvent) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchangeName,     // exchange
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	p.log.Debugw("Published ledger event",
		"type", event.Type,
		"transaction_id", event.TransactionID,
		"exchange", p.exchangeName)
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
