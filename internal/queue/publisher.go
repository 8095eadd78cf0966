package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Exchange and audit queue names.  The audit queue is bound to every
// routing key.
const (
	ExchangeName   = "marketplace.events"
	AuditQueueName = "marketplace.audit"
)

// Publisher is satisfied by AMQPPublisher and NopPublisher.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops events.  It is used when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// AMQPPublisher holds one connection and channel for the life of the
// process.  A channel is not safe for concurrent publishing, hence mu.
type AMQPPublisher struct {
	url  string
	log  *zap.Logger
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher dials the broker and declares the topology.
func NewAMQPPublisher(url string, log *zap.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, log: log}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(AuditQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	if err := ch.QueueBind(AuditQueueName, "#", ExchangeName, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue bind: %w", err)
	}
	return nil
}

// Publish sends ev as a persistent JSON message routed by its type.  A
// closed connection is re-dialled once.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.Type == "" {
		return errors.New("rabbitmq: event without type")
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.log.Warn("rabbitmq: connection lost, reconnecting")
		if err := p.connect(); err != nil {
			return err
		}
	}
	if err := p.ch.PublishWithContext(ctx, ExchangeName, ev.Type, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
