package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	// MaxNotifications caps ListNotifications
	MaxNotifications = 50

	deliveryTimeout = 10 * time.Second
)

// Deliverer pushes a committed notification to its user out of band
type Deliverer interface {
	Deliver(ctx context.Context, n *models.Notification) error
}

// Dispatcher writes notifications as part of a unit of work and hands them
// to a Deliverer once the unit of work has committed. Deliveries run on a
// single worker so each user sees pushes in commit order.
type Dispatcher struct {
	deliverer Deliverer
	queue     chan *models.Notification

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewDispatcher creates a dispatcher. A nil deliverer disables push delivery;
// notifications are still persisted.
func NewDispatcher(deliverer Deliverer, queueSize int) *Dispatcher {
	d := &Dispatcher{
		deliverer: deliverer,
		done:      make(chan struct{}),
	}
	if deliverer == nil {
		close(d.done)
		return d
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	d.queue = make(chan *models.Notification, queueSize)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := d.deliverer.Deliver(ctx, n); err != nil {
			log.Warn().
				Err(err).
				Str("user_id", n.UserID).
				Str("notification_id", n.ID).
				Str("type", string(n.Type)).
				Msg("Failed to deliver notification")
		}
		cancel()
	}
}

// Close stops accepting deliveries and waits for queued ones to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		if d.queue != nil {
			close(d.queue)
		}
	}
	d.mu.Unlock()
	<-d.done
}

// Outbox stages the notifications of one unit of work
type Outbox struct {
	q       repository.NotificationStore
	now     time.Time
	newID   func() string
	pending []*models.Notification
}

// Begin opens an outbox bound to the transaction-scoped store q
func (d *Dispatcher) Begin(q repository.NotificationStore, now time.Time, newID func() string) *Outbox {
	return &Outbox{q: q, now: now, newID: newID}
}

// Notify persists a notification for userID; eventID may be empty
func (o *Outbox) Notify(ctx context.Context, userID string, typ models.NotificationType, message, eventID string) error {
	n := &models.Notification{
		ID:        o.newID(),
		UserID:    userID,
		Type:      typ,
		Message:   message,
		CreatedAt: o.now,
	}
	if eventID != "" {
		n.EventID = &eventID
	}

	if err := o.q.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to write %s notification: %w", typ, err)
	}

	o.pending = append(o.pending, n)
	return nil
}

// Pending returns the notifications staged so far
func (o *Outbox) Pending() []*models.Notification {
	return o.pending
}

// Flush queues the outbox's notifications for delivery. Call only after commit.
func (d *Dispatcher) Flush(o *Outbox) {
	if o == nil || d.queue == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	for _, n := range o.pending {
		select {
		case d.queue <- n:
		default:
			log.Warn().
				Str("user_id", n.UserID).
				Str("notification_id", n.ID).
				Msg("Delivery queue full, dropping push")
		}
	}
}

// FanOut delivers each notification to every registered Deliverer
type FanOut struct {
	names   []string
	targets []Deliverer
}

// NewFanOut creates an empty fan-out
func NewFanOut() *FanOut {
	return &FanOut{}
}

// Add registers a named deliverer
func (f *FanOut) Add(name string, d Deliverer) {
	f.names = append(f.names, name)
	f.targets = append(f.targets, d)
}

// Len returns the number of registered deliverers
func (f *FanOut) Len() int {
	return len(f.targets)
}

// Deliver hands n to every target and joins their failures
func (f *FanOut) Deliver(ctx context.Context, n *models.Notification) error {
	var errs []error
	for i, target := range f.targets {
		if err := target.Deliver(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))
		}
	}
	return errors.Join(errs...)
}

// NotificationService exposes a user's notification log
type NotificationService struct {
	store repository.Store
}

// NewNotificationService creates a new notification service
func NewNotificationService(store repository.Store) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the user's newest notifications, at most MaxNotifications
func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]*models.NotificationView, error) {
	if limit <= 0 || limit > MaxNotifications {
		limit = MaxNotifications
	}

	var out []*models.NotificationView
	err := s.store.View(ctx, func(q repository.Querier) error {
		var err error
		out, err = q.ListNotifications(ctx, userID, limit)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	return out, nil
}

// UnreadCount counts the user's unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.store.View(ctx, func(q repository.Querier) error {
		var err error
		count, err = q.CountUnreadNotifications(ctx, userID)
		return err
	})
	if err != nil {
		return 0, storeError(err)
	}
	return count, nil
}

// MarkRead sets the read flag on one of the user's notifications
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		ok, err := q.MarkNotificationRead(ctx, userID, notificationID)
		if err != nil {
			return err
		}
		if !ok {
			return newError(KindNotFound, "notification not found")
		}
		return nil
	})
	return storeError(err)
}
