package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"djqueue-backend/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	maxBackoff     = 30 * time.Second
	defaultQoS     = 50
	handleTimeout  = 10 * time.Second
	reconnectDelay = 2 * time.Second
)

// Handler processes one consumed notification
type Handler func(ctx context.Context, n *models.Notification) error

// Consumer reads notifications from the durable queue and hands them to a
// Handler. Failed messages are rejected without requeue.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	handle   Handler
}

// NewConsumer creates a consumer for queue
func NewConsumer(url, queue string, prefetch int, handle Handler) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	if prefetch <= 0 {
		prefetch = defaultQoS
	}
	return &Consumer{url: url, queue: queue, prefetch: prefetch, handle: handle}
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("notification-consumer: failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("notification-consumer: consume loop ended, reconnecting")
		if !sleep(ctx, reconnectDelay) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		log.Warn().Err(err).Msg("notification-consumer: set QoS failed")
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleDelivery(ctx, d.Body); err != nil {
				log.Error().Err(err).Str("message_id", d.MessageId).Msg("notification-consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, body []byte) error {
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if n.UserID == "" {
		return errors.New("notification has no user_id")
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()
	return c.handle(ctx, &n)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
