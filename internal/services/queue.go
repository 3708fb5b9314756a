package services

import (
	"context"
	"errors"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"
)

// lockEvent loads the event row for update and rejects inconsistent rows
func lockEvent(ctx context.Context, q repository.Querier, eventID string) (*models.Event, error) {
	event, err := q.GetEventForUpdate(ctx, eventID)
	if err != nil {
		return nil, notFoundAs(err, "event not found")
	}
	if !event.Consistent() {
		return nil, wrapError(KindInternal, "event is in an inconsistent state", nil)
	}
	return event, nil
}

// JoinQueue adds the calling DJ to an open event's queue
func (s *EventService) JoinQueue(ctx context.Context, caller Caller, eventID string) (*models.QueueEntry, error) {
	if caller.Role != models.RoleDJ {
		return nil, wrapError(KindNotAuthorized, "only DJs can join queues", nil)
	}

	var entry *models.QueueEntry
	err := s.update(ctx, func(q repository.Querier, out *Outbox, now time.Time) error {
		event, err := lockEvent(ctx, q, eventID)
		if err != nil {
			return err
		}
		if event.Status != models.EventStatusOpen || event.SelectedDJID != nil {
			return ErrQueueClosed
		}

		queued, err := q.QueueEntryExists(ctx, eventID, caller.UserID)
		if err != nil {
			return err
		}
		if queued {
			return ErrAlreadyQueued
		}

		entry = &models.QueueEntry{
			ID:       s.newID(),
			EventID:  eventID,
			DJID:     caller.UserID,
			JoinedAt: now,
		}
		if err := q.InsertQueueEntry(ctx, entry); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyQueued
			}
			return err
		}

		return out.Notify(ctx, event.CreatorID, models.NotificationQueueJoin, msgQueueJoin, eventID)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// LeaveQueue removes the calling DJ from an event's queue. An invitation or
// selection the DJ holds is left for decline or opt-out to resolve.
func (s *EventService) LeaveQueue(ctx context.Context, caller Caller, eventID string) error {
	return s.update(ctx, func(q repository.Querier, _ *Outbox, _ time.Time) error {
		if _, err := lockEvent(ctx, q, eventID); err != nil {
			return err
		}
		removed, err := q.DeleteQueueEntry(ctx, eventID, caller.UserID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrNotQueued
		}
		return nil
	})
}

// Invite offers the event to a queued DJ. At most one invitation is
// outstanding per event.
func (s *EventService) Invite(ctx context.Context, caller Caller, eventID, djID string) (*models.Event, error) {
	if djID == "" {
		return nil, newError(KindInvalidInput, "dj_id is required")
	}

	var event *models.Event
	err := s.update(ctx, func(q repository.Querier, out *Outbox, _ time.Time) error {
		var err error
		event, err = lockEvent(ctx, q, eventID)
		if err != nil {
			return err
		}
		if event.CreatorID != caller.UserID {
			return wrapError(KindNotAuthorized, "only the event creator can send invitations", nil)
		}
		if event.SelectedDJID != nil {
			return ErrAlreadySelected
		}
		if event.State().Terminal() {
			return ErrInvalidTransition
		}
		if event.PendingDJID != nil {
			return ErrInvitationPending
		}

		queued, err := q.QueueEntryExists(ctx, eventID, djID)
		if err != nil {
			return err
		}
		if !queued {
			return ErrDJNotQueued
		}

		event.MoveTo(models.StateInvitationPending, djID)
		if err := q.SaveEventState(ctx, event); err != nil {
			return err
		}
		return out.Notify(ctx, djID, models.NotificationInvitation, msgInvitation, eventID)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// AcceptInvitation confirms the calling DJ as the event's DJ and closes the
// queue
func (s *EventService) AcceptInvitation(ctx context.Context, caller Caller, eventID string) (*models.Event, error) {
	var event *models.Event
	err := s.update(ctx, func(q repository.Querier, out *Outbox, _ time.Time) error {
		var err error
		event, err = lockEvent(ctx, q, eventID)
		if err != nil {
			return err
		}
		if !event.IsPending(caller.UserID) {
			return ErrNoPendingInvitation
		}
		if event.SelectedDJID != nil {
			return ErrAlreadySelected
		}

		event.MoveTo(models.StateClosed, caller.UserID)
		if err := q.SaveEventState(ctx, event); err != nil {
			return err
		}
		if err := q.IncrementDJTotalEvents(ctx, caller.UserID); err != nil {
			return err
		}

		queued, err := q.ListQueuedDJIDs(ctx, eventID)
		if err != nil {
			return err
		}
		for _, djID := range queued {
			msg := msgQueueClosed
			if djID == caller.UserID {
				msg = msgAcceptedSelf
			}
			if err := out.Notify(ctx, djID, models.NotificationQueueClosed, msg, eventID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// DeclineInvitation withdraws the calling DJ's pending invitation
func (s *EventService) DeclineInvitation(ctx context.Context, caller Caller, eventID string) (*models.Event, error) {
	var event *models.Event
	err := s.update(ctx, func(q repository.Querier, out *Outbox, _ time.Time) error {
		var err error
		event, err = lockEvent(ctx, q, eventID)
		if err != nil {
			return err
		}
		if !event.IsPending(caller.UserID) {
			return ErrNoPendingInvitation
		}

		event.MoveTo(models.StateOpen, "")
		if err := q.SaveEventState(ctx, event); err != nil {
			return err
		}
		return out.Notify(ctx, event.CreatorID, models.NotificationInvitationDeclined, msgInvitationDeclined, eventID)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// OptOut releases the calling DJ from a closed event and reopens its queue
func (s *EventService) OptOut(ctx context.Context, caller Caller, eventID string) (*models.Event, error) {
	var event *models.Event
	err := s.update(ctx, func(q repository.Querier, out *Outbox, _ time.Time) error {
		var err error
		event, err = lockEvent(ctx, q, eventID)
		if err != nil {
			return err
		}
		if !event.IsSelected(caller.UserID) {
			return ErrNotSelectedDJ
		}
		if event.State().Terminal() {
			return ErrInvalidTransition
		}

		event.MoveTo(models.StateOpen, "")
		if err := q.SaveEventState(ctx, event); err != nil {
			return err
		}

		queued, err := q.ListQueuedDJIDs(ctx, eventID)
		if err != nil {
			return err
		}
		for _, djID := range queued {
			if err := out.Notify(ctx, djID, models.NotificationQueueReopened, msgQueueReopened, eventID); err != nil {
				return err
			}
		}
		return out.Notify(ctx, event.CreatorID, models.NotificationDJOptedOut, msgDJOptedOut, eventID)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}
