package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"djqueue-backend/internal/models"
)

func TestHandleDelivery(t *testing.T) {
	t.Parallel()

	var got *models.Notification
	c := NewConsumer("amqp://unused", "", 0, func(_ context.Context, n *models.Notification) error {
		got = n
		return nil
	})

	body := []byte(`{"id":"n1","user_id":"u1","type":"invitation","message":"hi","read":false,"created_at":"2026-03-01T20:00:00Z"}`)
	if err := c.handleDelivery(context.Background(), body); err != nil {
		t.Fatalf("handleDelivery: %v", err)
	}
	if got == nil || got.UserID != "u1" || got.Type != models.NotificationInvitation {
		t.Fatalf("handled notification = %+v", got)
	}
	if c.queue != DefaultQueue || c.prefetch != defaultQoS {
		t.Fatalf("defaults = %q/%d", c.queue, c.prefetch)
	}
}

func TestHandleDeliveryRejectsBadMessages(t *testing.T) {
	t.Parallel()

	called := false
	c := NewConsumer("amqp://unused", "q", 1, func(context.Context, *models.Notification) error {
		called = true
		return nil
	})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing user", `{"id":"n1","type":"message"}`},
	}
	for _, tt := range tests {
		if err := c.handleDelivery(context.Background(), []byte(tt.body)); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if called {
		t.Fatal("handler called for a rejected message")
	}
}

func TestHandleDeliveryPropagatesHandlerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("apns down")
	c := NewConsumer("amqp://unused", "q", 1, func(context.Context, *models.Notification) error { return boom })
	err := c.handleDelivery(context.Background(), []byte(`{"id":"n1","user_id":"u1"}`))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestSleepStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Hour) {
		t.Fatal("sleep returned true after cancel")
	}
}
