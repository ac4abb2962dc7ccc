package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/cidco-records/apiserver/config"
	"github.com/cidco-records/apiserver/types"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes audit events to a RabbitMQ queue.
type RabbitMQPublisher struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueDurable    bool
	queueAutoDelete bool
}

// NewRabbitMQPublisher constructs a RabbitMQ publisher from config.
func NewRabbitMQPublisher(cfg config.RabbitMQConfig) (*RabbitMQPublisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQPublisher{
		conn:            conn,
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
	}, nil
}

// Publish sends the event to the audit queue as JSON.
func (r *RabbitMQPublisher) Publish(ctx context.Context, event types.RecordEvent) error {
	if _, err := r.channel.QueueDeclare(
		AuditChannel,
		r.queueDurable,
		r.queueAutoDelete,
		false,
		false,
		nil,
	); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.channel.PublishWithContext(ctx, "", AuditChannel, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   event.ID,
		Body:        body,
	})
}

// Close closes the underlying channel and connection.
func (r *RabbitMQPublisher) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
