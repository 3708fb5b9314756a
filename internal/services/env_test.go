package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"
	"djqueue-backend/internal/repository/memstore"
)

var testStart = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

// testEnv wires every service to one memstore with a ticking clock and
// sequential ids
type testEnv struct {
	store         *memstore.Store
	users         *UserService
	events        *EventService
	messages      *MessageService
	ratings       *RatingService
	notifications *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithDispatcher(t, NewDispatcher(nil, 0))
}

func newTestEnvWithDispatcher(t *testing.T, d *Dispatcher) *testEnv {
	t.Helper()

	var mu sync.Mutex
	ticks, ids := 0, 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		return testStart.Add(time.Duration(ticks) * time.Second)
	}
	newID := func() string {
		mu.Lock()
		defer mu.Unlock()
		ids++
		return fmt.Sprintf("id-%03d", ids)
	}

	store := memstore.New()
	env := &testEnv{
		store:         store,
		users:         NewUserService(store),
		events:        NewEventService(store, d),
		messages:      NewMessageService(store, d),
		ratings:       NewRatingService(store, d),
		notifications: NewNotificationService(store),
	}
	for _, c := range []*core{&env.users.core, &env.events.core, &env.messages.core, &env.ratings.core} {
		c.clock = clock
		c.newID = newID
	}
	return env
}

// member resolves a new identity and completes its profile with role
func (e *testEnv) member(t *testing.T, id, name string, role models.Role) Caller {
	t.Helper()
	ctx := context.Background()

	caller, err := e.users.Resolve(ctx, Identity{Subject: id})
	if err != nil {
		t.Fatalf("resolve %s: %v", id, err)
	}
	if role == models.RoleUnset {
		return caller
	}
	user, err := e.users.CompleteProfile(ctx, caller, CompleteProfileInput{Name: name, Role: role, Genres: "house"})
	if err != nil {
		t.Fatalf("complete profile %s: %v", id, err)
	}
	return callerOf(user)
}

func (e *testEnv) createEvent(t *testing.T, host Caller) *models.Event {
	t.Helper()
	event, err := e.events.CreateEvent(context.Background(), host, CreateEventInput{
		Title:           "Warehouse Night",
		Location:        "Dock 4",
		LocationPrivate: true,
		StartsAt:        testStart.Add(48 * time.Hour),
		EndsAt:          testStart.Add(52 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func (e *testEnv) event(t *testing.T, id string) *models.Event {
	t.Helper()
	var event *models.Event
	err := e.store.View(context.Background(), func(q repository.Querier) error {
		var err error
		event, err = q.GetEvent(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	return event
}

func (e *testEnv) inbox(t *testing.T, userID string) []*models.NotificationView {
	t.Helper()
	list, err := e.notifications.List(context.Background(), userID, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return list
}

// countType counts notifications of typ carrying message
func countType(list []*models.NotificationView, typ models.NotificationType, message string) int {
	n := 0
	for _, v := range list {
		if v.Type == typ && (message == "" || v.Message == message) {
			n++
		}
	}
	return n
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %s (%v), want %s", got, err, kind)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error %v is not a domain error", err)
	}
}

// recorder is a Deliverer that keeps every delivered notification
type recorder struct {
	mu   sync.Mutex
	got  []*models.Notification
	fail error
}

func (r *recorder) Deliver(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.fail
}

func (r *recorder) delivered() []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Notification(nil), r.got...)
}
