package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"
)

func TestEventLifecycleHappyPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	dj2 := env.member(t, "dj2", "Deck Two", models.RoleDJ)

	event := env.createEvent(t, host)
	if event.State() != models.StateOpen {
		t.Fatalf("new event state = %s, want open", event.State())
	}

	for _, dj := range []Caller{dj1, dj2} {
		if _, err := env.events.JoinQueue(ctx, dj, event.ID); err != nil {
			t.Fatalf("join %s: %v", dj.UserID, err)
		}
	}
	if got := countType(env.inbox(t, host.UserID), models.NotificationQueueJoin, msgQueueJoin); got != 2 {
		t.Fatalf("host queue_join notifications = %d, want 2", got)
	}

	invited, err := env.events.Invite(ctx, host, event.ID, dj1.UserID)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if invited.State() != models.StateInvitationPending || !invited.IsPending(dj1.UserID) {
		t.Fatalf("after invite state = %s pending = %v", invited.State(), invited.PendingDJID)
	}
	if got := countType(env.inbox(t, dj1.UserID), models.NotificationInvitation, msgInvitation); got != 1 {
		t.Fatalf("dj1 invitation notifications = %d, want 1", got)
	}

	accepted, err := env.events.AcceptInvitation(ctx, dj1, event.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.State() != models.StateClosed || !accepted.IsSelected(dj1.UserID) || accepted.PendingDJID != nil {
		t.Fatalf("after accept = %+v", accepted)
	}

	if got := countType(env.inbox(t, dj1.UserID), models.NotificationQueueClosed, msgAcceptedSelf); got != 1 {
		t.Fatalf("dj1 self queue_closed = %d, want 1", got)
	}
	if got := countType(env.inbox(t, dj2.UserID), models.NotificationQueueClosed, msgQueueClosed); got != 1 {
		t.Fatalf("dj2 queue_closed = %d, want 1", got)
	}

	profile, err := env.users.GetDJProfile(ctx, dj1.UserID)
	if err != nil {
		t.Fatalf("dj1 profile: %v", err)
	}
	if profile.TotalEvents != 1 {
		t.Fatalf("dj1 total_events = %d, want 1", profile.TotalEvents)
	}

	thrower, err := env.users.GetPartyThrowerProfile(ctx, host.UserID)
	if err != nil {
		t.Fatalf("host profile: %v", err)
	}
	if thrower.TotalEventsCreated != 1 {
		t.Fatalf("total_events_created = %d, want 1", thrower.TotalEventsCreated)
	}

	stored := env.event(t, event.ID)
	if !stored.Consistent() {
		t.Fatalf("stored event inconsistent: %+v", stored)
	}
}

func TestDeclineThenInviteAnother(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	dj2 := env.member(t, "dj2", "Deck Two", models.RoleDJ)
	event := env.createEvent(t, host)

	for _, dj := range []Caller{dj1, dj2} {
		if _, err := env.events.JoinQueue(ctx, dj, event.ID); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	if _, err := env.events.Invite(ctx, host, event.ID, dj1.UserID); err != nil {
		t.Fatalf("invite dj1: %v", err)
	}

	_, err := env.events.Invite(ctx, host, event.ID, dj2.UserID)
	wantKind(t, err, KindInvitationPending)

	declined, err := env.events.DeclineInvitation(ctx, dj1, event.ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.State() != models.StateOpen {
		t.Fatalf("after decline state = %s", declined.State())
	}
	if got := countType(env.inbox(t, host.UserID), models.NotificationInvitationDeclined, msgInvitationDeclined); got != 1 {
		t.Fatalf("invitation_declined = %d, want 1", got)
	}

	queue, err := env.events.GetQueue(ctx, event.ID)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("queue length after decline = %d, want 2", len(queue))
	}

	if _, err := env.events.Invite(ctx, host, event.ID, dj2.UserID); err != nil {
		t.Fatalf("invite dj2: %v", err)
	}
	_, err = env.events.AcceptInvitation(ctx, dj1, event.ID)
	wantKind(t, err, KindNoPendingInvitation)
}

func TestOptOutReopensQueue(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	dj2 := env.member(t, "dj2", "Deck Two", models.RoleDJ)
	dj3 := env.member(t, "dj3", "Deck Three", models.RoleDJ)
	event := env.createEvent(t, host)

	for _, dj := range []Caller{dj1, dj2} {
		if _, err := env.events.JoinQueue(ctx, dj, event.ID); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	if _, err := env.events.Invite(ctx, host, event.ID, dj1.UserID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := env.events.AcceptInvitation(ctx, dj1, event.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := env.events.JoinQueue(ctx, dj3, event.ID)
	wantKind(t, err, KindQueueClosed)

	_, err = env.events.OptOut(ctx, dj2, event.ID)
	wantKind(t, err, KindNotSelectedDJ)

	reopened, err := env.events.OptOut(ctx, dj1, event.ID)
	if err != nil {
		t.Fatalf("opt out: %v", err)
	}
	if reopened.State() != models.StateOpen || reopened.SelectedDJID != nil {
		t.Fatalf("after opt-out = %+v", reopened)
	}

	if got := countType(env.inbox(t, dj2.UserID), models.NotificationQueueReopened, msgQueueReopened); got != 1 {
		t.Fatalf("dj2 queue_reopened = %d, want 1", got)
	}
	if got := countType(env.inbox(t, host.UserID), models.NotificationDJOptedOut, msgDJOptedOut); got != 1 {
		t.Fatalf("host dj_opted_out = %d, want 1", got)
	}

	profile, err := env.users.GetDJProfile(ctx, dj1.UserID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.TotalEvents != 1 {
		t.Fatalf("total_events after opt-out = %d, want 1", profile.TotalEvents)
	}

	if _, err := env.events.JoinQueue(ctx, dj3, event.ID); err != nil {
		t.Fatalf("join after reopen: %v", err)
	}
}

func TestLifecycleGuards(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	other := env.member(t, "other", "Otto", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	dj2 := env.member(t, "dj2", "Deck Two", models.RoleDJ)
	event := env.createEvent(t, host)

	_, err := env.events.CreateEvent(ctx, dj1, CreateEventInput{Title: "x", Location: "y", StartsAt: testStart, EndsAt: testStart})
	wantKind(t, err, KindNotAuthorized)

	_, err = env.events.CreateEvent(ctx, host, CreateEventInput{
		Title: "Backwards", Location: "Roof", StartsAt: testStart.Add(time.Hour), EndsAt: testStart,
	})
	wantKind(t, err, KindInvalidTimeWindow)

	_, err = env.events.CreateEvent(ctx, host, CreateEventInput{Title: " ", Location: "Roof", StartsAt: testStart, EndsAt: testStart})
	wantKind(t, err, KindInvalidInput)

	_, err = env.events.JoinQueue(ctx, host, event.ID)
	wantKind(t, err, KindNotAuthorized)

	_, err = env.events.JoinQueue(ctx, dj1, "missing")
	wantKind(t, err, KindNotFound)

	if _, err := env.events.JoinQueue(ctx, dj1, event.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	_, err = env.events.JoinQueue(ctx, dj1, event.ID)
	wantKind(t, err, KindAlreadyQueued)

	err = env.events.LeaveQueue(ctx, dj2, event.ID)
	wantKind(t, err, KindNotQueued)

	_, err = env.events.Invite(ctx, other, event.ID, dj1.UserID)
	wantKind(t, err, KindNotAuthorized)

	_, err = env.events.Invite(ctx, host, event.ID, dj2.UserID)
	wantKind(t, err, KindDJNotQueued)

	_, err = env.events.AcceptInvitation(ctx, dj1, event.ID)
	wantKind(t, err, KindNoPendingInvitation)

	_, err = env.events.DeclineInvitation(ctx, dj1, event.ID)
	wantKind(t, err, KindNoPendingInvitation)

	if _, err := env.events.Invite(ctx, host, event.ID, dj1.UserID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := env.events.AcceptInvitation(ctx, dj1, event.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err = env.events.Invite(ctx, host, event.ID, dj1.UserID)
	wantKind(t, err, KindAlreadySelected)

	if err := env.events.LeaveQueue(ctx, dj1, event.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !env.event(t, event.ID).IsSelected(dj1.UserID) {
		t.Fatal("leaving the queue dropped the selection")
	}
}

func TestPendingInvitationDoesNotBlockJoin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	dj2 := env.member(t, "dj2", "Deck Two", models.RoleDJ)
	event := env.createEvent(t, host)

	if _, err := env.events.JoinQueue(ctx, dj1, event.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := env.events.Invite(ctx, host, event.ID, dj1.UserID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := env.events.JoinQueue(ctx, dj2, event.ID); err != nil {
		t.Fatalf("join while invitation pending: %v", err)
	}
}

func TestLeaveQueueIdempotentRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	event := env.createEvent(t, host)

	if _, err := env.events.JoinQueue(ctx, dj1, event.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := env.events.LeaveQueue(ctx, dj1, event.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	err := env.events.LeaveQueue(ctx, dj1, event.ID)
	wantKind(t, err, KindNotQueued)

	queue, err := env.events.GetQueue(ctx, event.ID)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("queue after join and leave = %+v, want empty", queue)
	}
	if got := env.event(t, event.ID); got.State() != models.StateOpen {
		t.Fatalf("state = %s, want open", got.State())
	}

	if _, err := env.events.JoinQueue(ctx, dj1, event.ID); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	queue, err = env.events.GetQueue(ctx, event.ID)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 1 || queue[0].DJID != dj1.UserID {
		t.Fatalf("queue after rejoin = %+v", queue)
	}
}

func TestSetEventStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	dj2 := env.member(t, "dj2", "Deck Two", models.RoleDJ)

	t.Run("cancel clears pending invitation", func(t *testing.T) {
		event := env.createEvent(t, host)
		for _, dj := range []Caller{dj1, dj2} {
			if _, err := env.events.JoinQueue(ctx, dj, event.ID); err != nil {
				t.Fatalf("join: %v", err)
			}
		}
		if _, err := env.events.Invite(ctx, host, event.ID, dj1.UserID); err != nil {
			t.Fatalf("invite: %v", err)
		}

		_, err := env.events.SetEventStatus(ctx, dj1, event.ID, models.EventStatusCancelled)
		wantKind(t, err, KindNotAuthorized)

		cancelled, err := env.events.SetEventStatus(ctx, host, event.ID, models.EventStatusCancelled)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.State() != models.StateCancelled || cancelled.PendingDJID != nil {
			t.Fatalf("after cancel = %+v", cancelled)
		}
		if got := countType(env.inbox(t, dj2.UserID), models.NotificationEventCancelled, ""); got != 1 {
			t.Fatalf("dj2 event_cancelled = %d, want 1", got)
		}

		_, err = env.events.AcceptInvitation(ctx, dj1, event.ID)
		wantKind(t, err, KindNoPendingInvitation)
		_, err = env.events.Invite(ctx, host, event.ID, dj2.UserID)
		wantKind(t, err, KindInvalidTransition)
		_, err = env.events.JoinQueue(ctx, dj1, event.ID)
		wantKind(t, err, KindQueueClosed)
		_, err = env.events.SetEventStatus(ctx, host, event.ID, models.EventStatusCompleted)
		wantKind(t, err, KindInvalidTransition)
	})

	t.Run("complete keeps selected dj", func(t *testing.T) {
		event := env.createEvent(t, host)
		if _, err := env.events.JoinQueue(ctx, dj1, event.ID); err != nil {
			t.Fatalf("join: %v", err)
		}
		if _, err := env.events.Invite(ctx, host, event.ID, dj1.UserID); err != nil {
			t.Fatalf("invite: %v", err)
		}
		if _, err := env.events.AcceptInvitation(ctx, dj1, event.ID); err != nil {
			t.Fatalf("accept: %v", err)
		}

		completed, err := env.events.SetEventStatus(ctx, host, event.ID, models.EventStatusCompleted)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if completed.State() != models.StateCompleted || !completed.IsSelected(dj1.UserID) {
			t.Fatalf("after complete = %+v", completed)
		}
		if got := countType(env.inbox(t, dj1.UserID), models.NotificationEventCompleted, ""); got != 1 {
			t.Fatalf("dj1 event_completed = %d, want 1", got)
		}

		_, err = env.events.OptOut(ctx, dj1, event.ID)
		wantKind(t, err, KindInvalidTransition)
	})

	t.Run("rejects non terminal target", func(t *testing.T) {
		event := env.createEvent(t, host)
		_, err := env.events.SetEventStatus(ctx, host, event.ID, models.EventStatusClosed)
		wantKind(t, err, KindInvalidInput)
	})
}

func TestListEventsExcludesCancelledAndRedactsLocation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	dj2 := env.member(t, "dj2", "Deck Two", models.RoleDJ)

	kept := env.createEvent(t, host)
	dropped := env.createEvent(t, host)
	if _, err := env.events.SetEventStatus(ctx, host, dropped.ID, models.EventStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	all, err := env.events.ListEvents(ctx, dj2, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list all = %d events, want 2", len(all))
	}
	if all[0].ID != dropped.ID {
		t.Fatalf("first event = %s, want newest %s", all[0].ID, dropped.ID)
	}

	open, err := env.events.ListEvents(ctx, dj2, true)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].ID != kept.ID {
		t.Fatalf("list excluding cancelled = %+v", open)
	}
	if open[0].Location != "" {
		t.Fatalf("private location leaked to outsider: %q", open[0].Location)
	}

	if _, err := env.events.JoinQueue(ctx, dj1, kept.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := env.events.Invite(ctx, host, kept.ID, dj1.UserID); err != nil {
		t.Fatalf("invite: %v", err)
	}

	pending, err := env.events.GetEvent(ctx, dj1, kept.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pending.Location != "" {
		t.Fatal("private location visible to invited but unconfirmed dj")
	}

	if _, err := env.events.AcceptInvitation(ctx, dj1, kept.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	for _, c := range []Caller{host, dj1} {
		detail, err := env.events.GetEvent(ctx, c, kept.ID)
		if err != nil {
			t.Fatalf("get as %s: %v", c.UserID, err)
		}
		if detail.Location != "Dock 4" {
			t.Fatalf("location for %s = %q", c.UserID, detail.Location)
		}
	}

	detail, err := env.events.GetEvent(ctx, dj2, kept.ID)
	if err != nil {
		t.Fatalf("get as dj2: %v", err)
	}
	if detail.Location != "" {
		t.Fatal("private location visible to outsider after selection")
	}

	_, err = env.events.GetEvent(ctx, dj2, "missing")
	wantKind(t, err, KindNotFound)
}

func TestAcceptRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	event := env.createEvent(t, host)

	if _, err := env.events.JoinQueue(ctx, dj1, event.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := env.events.Invite(ctx, host, event.ID, dj1.UserID); err != nil {
		t.Fatalf("invite: %v", err)
	}

	env.store.InjectFault("IncrementDJTotalEvents", errors.New("disk full"))
	if _, err := env.events.AcceptInvitation(ctx, dj1, event.ID); err == nil {
		t.Fatal("expected accept to fail")
	}

	stored := env.event(t, event.ID)
	if stored.State() != models.StateInvitationPending || !stored.IsPending(dj1.UserID) {
		t.Fatalf("event after failed accept = %+v", stored)
	}
	if got := countType(env.inbox(t, dj1.UserID), models.NotificationQueueClosed, ""); got != 0 {
		t.Fatalf("queue_closed written by failed accept: %d", got)
	}

	env.store.InjectFault("IncrementDJTotalEvents", nil)
	if _, err := env.events.AcceptInvitation(ctx, dj1, event.ID); err != nil {
		t.Fatalf("accept after fault cleared: %v", err)
	}
}

func TestNotificationFailureAbortsTransition(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	event := env.createEvent(t, host)

	env.store.InjectFault("InsertNotification", errors.New("disk full"))
	if _, err := env.events.JoinQueue(ctx, dj1, event.ID); err == nil {
		t.Fatal("expected join to fail")
	}
	env.store.InjectFault("InsertNotification", nil)

	queue, err := env.events.GetQueue(ctx, event.ID)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("queue entry survived failed join: %d", len(queue))
	}
}

func TestConcurrentAcceptYieldsOneSuccess(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj1 := env.member(t, "dj1", "Deck One", models.RoleDJ)
	event := env.createEvent(t, host)

	if _, err := env.events.JoinQueue(ctx, dj1, event.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := env.events.Invite(ctx, host, event.ID, dj1.UserID); err != nil {
		t.Fatalf("invite: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.events.AcceptInvitation(ctx, dj1, event.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		if !errors.Is(err, ErrNoPendingInvitation) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successful accepts = %d, want 1", successes)
	}

	profile, err := env.users.GetDJProfile(ctx, dj1.UserID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.TotalEvents != 1 {
		t.Fatalf("total_events = %d, want 1", profile.TotalEvents)
	}
}

func TestRetriesExhaustedMapsToTryAgain(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)

	env.store.InjectFault("CreateEvent", repository.ErrTxRetriesExhausted)
	_, err := env.events.CreateEvent(ctx, host, CreateEventInput{
		Title: "Roof", Location: "Top", StartsAt: testStart, EndsAt: testStart.Add(time.Hour),
	})
	wantKind(t, err, KindTryAgain)
}
