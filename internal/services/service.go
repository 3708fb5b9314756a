package services

import (
	"context"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"

	"github.com/google/uuid"
)

// Caller is the authenticated user behind a request
type Caller struct {
	UserID string      `json:"id"`
	Role   models.Role `json:"role"`
	Name   string      `json:"name"`
}

// core carries what every domain service needs to run a unit of work
type core struct {
	store      repository.Store
	dispatcher *Dispatcher
	clock      func() time.Time
	newID      func() string
}

func newCore(store repository.Store, dispatcher *Dispatcher) core {
	if dispatcher == nil {
		dispatcher = NewDispatcher(nil, 0)
	}
	return core{
		store:      store,
		dispatcher: dispatcher,
		clock:      func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// update runs fn in one transaction and queues the notifications it wrote
// for delivery once the transaction has committed
func (c *core) update(ctx context.Context, fn func(q repository.Querier, out *Outbox, now time.Time) error) error {
	var out *Outbox
	err := c.store.InTx(ctx, func(q repository.Querier) error {
		now := c.clock()
		out = c.dispatcher.Begin(q, now, c.newID)
		return fn(q, out, now)
	})
	if err != nil {
		return storeError(err)
	}
	c.dispatcher.Flush(out)
	return nil
}

// view runs fn against a read-only view of the store
func (c *core) view(ctx context.Context, fn func(q repository.Querier) error) error {
	return storeError(c.store.View(ctx, fn))
}
