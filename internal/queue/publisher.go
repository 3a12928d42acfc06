package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends one event to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// AMQPPublisher publishes events to durable queues on the default
// exchange.  The connection is opened lazily and re-opened after a
// failure, so a broker outage only costs the events sent during it.
type AMQPPublisher struct {
	url    string
	logger *slog.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{url: url, logger: logger, declared: map[string]bool{}}
}

// Publish marshals ev and publishes it as a persistent message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.logger.Warn("rabbitmq: connect failed", "error", err)
		return err
	}

	key := ev.RoutingKey()
	if !p.declared[key] {
		// Durable so messages survive broker restarts.
		if _, err := ch.QueueDeclare(key, true, false, false, false, nil); err != nil {
			p.reset()
			p.logger.Warn("rabbitmq: queue declare failed", "queue", key, "error", err)
			return err
		}
		p.declared[key] = true
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", key, false, false, pub); err != nil {
		p.reset()
		p.logger.Warn("rabbitmq: publish failed", "queue", key, "error", err)
		return err
	}
	return nil
}

// Close tears down the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
	p.declared = map[string]bool{}
}
