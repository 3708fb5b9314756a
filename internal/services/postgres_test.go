package services

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgEnv runs the services against a real database named by
// DJQUEUE_TEST_DSN so row locks and serializable retries are exercised
type pgEnv struct {
	store   *repository.PostgresStore
	users   *UserService
	events  *EventService
	ratings *RatingService
}

func newPgEnv(t *testing.T) *pgEnv {
	t.Helper()

	dsn := os.Getenv("DJQUEUE_TEST_DSN")
	if dsn == "" {
		t.Skip("DJQUEUE_TEST_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	store := repository.NewPostgresStore(pool, 20)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return &pgEnv{
		store:   store,
		users:   NewUserService(store),
		events:  NewEventService(store, nil),
		ratings: NewRatingService(store, nil),
	}
}

// member creates a user with a unique id so runs can share a database
func (e *pgEnv) member(t *testing.T, name string, role models.Role) Caller {
	t.Helper()
	ctx := context.Background()

	caller, err := e.users.Resolve(ctx, Identity{Subject: name + "-" + uuid.NewString()})
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	user, err := e.users.CompleteProfile(ctx, caller, CompleteProfileInput{Name: name, Role: role})
	if err != nil {
		t.Fatalf("complete profile %s: %v", name, err)
	}
	return callerOf(user)
}

func (e *pgEnv) createEvent(t *testing.T, host Caller) *models.Event {
	t.Helper()
	start := time.Now().Add(48 * time.Hour).UTC()
	event, err := e.events.CreateEvent(context.Background(), host, CreateEventInput{
		Title:    "Warehouse Night",
		Location: "Dock 4",
		StartsAt: start,
		EndsAt:   start.Add(4 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func TestPostgresConcurrentAcceptYieldsOneSuccess(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", models.RolePartyThrower)
	dj := env.member(t, "dj", models.RoleDJ)
	event := env.createEvent(t, host)

	if _, err := env.events.JoinQueue(ctx, dj, event.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := env.events.Invite(ctx, host, event.ID, dj.UserID); err != nil {
		t.Fatalf("invite: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.events.AcceptInvitation(ctx, dj, event.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrNoPendingInvitation), KindOf(err) == KindTryAgain:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successful accepts = %d, want 1", successes)
	}

	profile, err := env.users.GetDJProfile(ctx, dj.UserID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.TotalEvents != 1 {
		t.Fatalf("total_events = %d, want 1", profile.TotalEvents)
	}
}

func TestPostgresConcurrentRatingsKeepAverage(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", models.RolePartyThrower)
	dj := env.member(t, "dj", models.RoleDJ)
	event := env.createEvent(t, host)

	scores := []int{5, 1, 4, 2, 3, 5}
	raters := make([]Caller, len(scores))
	for i := range scores {
		raters[i] = env.member(t, "rater", models.RolePartyThrower)
	}

	var wg sync.WaitGroup
	for i, score := range scores {
		wg.Add(1)
		go func(rater Caller, score int) {
			defer wg.Done()
			if _, err := env.ratings.SubmitRating(ctx, rater, event.ID, dj.UserID, score, nil); err != nil && KindOf(err) != KindTryAgain {
				t.Errorf("rate: %v", err)
			}
		}(raters[i], score)
	}
	wg.Wait()

	var stored float64
	var count int
	err := env.store.View(ctx, func(q repository.Querier) error {
		var err error
		stored, count, err = q.AverageRating(ctx, dj.UserID)
		return err
	})
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	if count == 0 {
		t.Fatal("no rating committed")
	}

	profile, err := env.users.GetDJProfile(ctx, dj.UserID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if math.Abs(profile.AverageRating-stored) > 1e-9 {
		t.Fatalf("profile average = %v, ratings average = %v over %d", profile.AverageRating, stored, count)
	}
}
