// Package queue fans committed notifications out through RabbitMQ and
// consumes them again for out-of-band push delivery.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"djqueue-backend/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// DefaultQueue is the durable queue notifications are published to
const DefaultQueue = "notifications.created"

// Publisher publishes notifications to a durable queue over one long-lived
// channel, redialing after the connection drops
type Publisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher creates a publisher; the connection is opened lazily
func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{url: url, queue: queue}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	p.conn, p.ch = conn, ch
	return ch, nil
}

// Deliver publishes n as a persistent JSON message
func (p *Publisher) Deliver(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Type:         string(n.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.closeLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close closes the channel and connection
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && err != amqp.ErrClosed {
			log.Debug().Err(err).Msg("rabbitmq: close connection")
		}
		p.conn = nil
	}
}
