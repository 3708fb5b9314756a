package services

import (
	"context"
	"strings"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"
)

const (
	msgQueueJoin          = "A new DJ joined the queue for your event"
	msgInvitation         = "You have received an invitation to play at an event!"
	msgAcceptedSelf       = "You accepted the invitation! You are now the official DJ."
	msgQueueClosed        = "The event queue has been closed. A DJ has been selected."
	msgInvitationDeclined = "A DJ declined your invitation."
	msgQueueReopened      = "The event queue has reopened"
	msgDJOptedOut         = "The selected DJ has opted out. Queue reopened."
	msgEventCancelled     = "An event you queued for has been cancelled."
	msgEventCompleted     = "An event you played has been marked as completed."
)

// EventService owns the event lifecycle: creation, the DJ queue,
// invitations and terminal status changes
type EventService struct {
	core
}

// NewEventService creates a new event service
func NewEventService(store repository.Store, dispatcher *Dispatcher) *EventService {
	return &EventService{core: newCore(store, dispatcher)}
}

// CreateEventInput carries the fields of a new event
type CreateEventInput struct {
	Title              string
	Location           string
	LocationPrivate    bool
	Size               *int
	Audience           string
	AgeRangeMin        *int
	AgeRangeMax        *int
	Occupancy          *int
	Theme              string
	MusicGenres        string
	StartsAt           time.Time
	EndsAt             time.Time
	ProvidedEquipment  string
	NecessaryEquipment string
	AdditionalNotes    string
}

// CreateEvent posts a new open event for a party thrower
func (s *EventService) CreateEvent(ctx context.Context, caller Caller, in CreateEventInput) (*models.Event, error) {
	if caller.Role != models.RolePartyThrower {
		return nil, wrapError(KindNotAuthorized, "only party throwers can create events", nil)
	}

	title := strings.TrimSpace(in.Title)
	location := strings.TrimSpace(in.Location)
	if title == "" || location == "" {
		return nil, newError(KindInvalidInput, "title and location are required")
	}
	if in.StartsAt.IsZero() || in.EndsAt.IsZero() {
		return nil, newError(KindInvalidInput, "time_frame_start and time_frame_end are required")
	}
	if in.EndsAt.Before(in.StartsAt) {
		return nil, ErrInvalidTimeWindow
	}
	if in.AgeRangeMin != nil && in.AgeRangeMax != nil && *in.AgeRangeMax < *in.AgeRangeMin {
		return nil, newError(KindInvalidInput, "age_range_max must not be below age_range_min")
	}

	var event *models.Event
	err := s.update(ctx, func(q repository.Querier, _ *Outbox, now time.Time) error {
		event = &models.Event{
			ID:                 s.newID(),
			CreatorID:          caller.UserID,
			Title:              title,
			Location:           location,
			LocationPrivate:    in.LocationPrivate,
			Size:               in.Size,
			Audience:           in.Audience,
			AgeRangeMin:        in.AgeRangeMin,
			AgeRangeMax:        in.AgeRangeMax,
			Occupancy:          in.Occupancy,
			Theme:              in.Theme,
			MusicGenres:        in.MusicGenres,
			StartsAt:           in.StartsAt.UTC(),
			EndsAt:             in.EndsAt.UTC(),
			ProvidedEquipment:  in.ProvidedEquipment,
			NecessaryEquipment: in.NecessaryEquipment,
			AdditionalNotes:    in.AdditionalNotes,
			CreatedAt:          now,
		}
		event.MoveTo(models.StateOpen, "")

		if err := q.CreateEvent(ctx, event); err != nil {
			return err
		}
		return q.IncrementEventsCreated(ctx, caller.UserID)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// GetEvent returns an event with participant names. The location of a
// private event is only visible to its creator and selected DJ.
func (s *EventService) GetEvent(ctx context.Context, caller Caller, eventID string) (*models.EventDetail, error) {
	var detail *models.EventDetail
	err := s.view(ctx, func(q repository.Querier) error {
		var err error
		detail, err = q.GetEventDetail(ctx, eventID)
		return notFoundAs(err, "event not found")
	})
	if err != nil {
		return nil, err
	}
	redactLocation(caller, detail)
	return detail, nil
}

// ListEvents returns events newest first
func (s *EventService) ListEvents(ctx context.Context, caller Caller, excludeCancelled bool) ([]*models.EventDetail, error) {
	var events []*models.EventDetail
	err := s.view(ctx, func(q repository.Querier) error {
		var err error
		events, err = q.ListEvents(ctx, excludeCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		redactLocation(caller, e)
	}
	return events, nil
}

func redactLocation(caller Caller, d *models.EventDetail) {
	if !d.LocationPrivate {
		return
	}
	if d.CreatorID == caller.UserID || d.IsSelected(caller.UserID) {
		return
	}
	d.Location = ""
}

// GetQueue returns the event queue in join order
func (s *EventService) GetQueue(ctx context.Context, eventID string) ([]*models.QueueEntryView, error) {
	var entries []*models.QueueEntryView
	err := s.view(ctx, func(q repository.Querier) error {
		if _, err := q.GetEvent(ctx, eventID); err != nil {
			return notFoundAs(err, "event not found")
		}
		var err error
		entries, err = q.ListQueue(ctx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SetEventStatus moves an event to a terminal status. Only the creator may
// do so and only completed or cancelled are accepted.
func (s *EventService) SetEventStatus(ctx context.Context, caller Caller, eventID string, status models.EventStatus) (*models.Event, error) {
	var target models.EventState
	switch status {
	case models.EventStatusCompleted:
		target = models.StateCompleted
	case models.EventStatusCancelled:
		target = models.StateCancelled
	default:
		return nil, newError(KindInvalidInput, "status must be completed or cancelled")
	}

	var event *models.Event
	err := s.update(ctx, func(q repository.Querier, out *Outbox, _ time.Time) error {
		var err error
		event, err = q.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return notFoundAs(err, "event not found")
		}
		if event.CreatorID != caller.UserID {
			return wrapError(KindNotAuthorized, "only the event creator can change its status", nil)
		}
		if event.State().Terminal() {
			return ErrInvalidTransition
		}

		event.MoveTo(target, "")
		if err := q.SaveEventState(ctx, event); err != nil {
			return err
		}

		switch target {
		case models.StateCancelled:
			queued, err := q.ListQueuedDJIDs(ctx, eventID)
			if err != nil {
				return err
			}
			for _, djID := range queued {
				if err := out.Notify(ctx, djID, models.NotificationEventCancelled, msgEventCancelled, eventID); err != nil {
					return err
				}
			}
		case models.StateCompleted:
			if event.SelectedDJID != nil {
				if err := out.Notify(ctx, *event.SelectedDJID, models.NotificationEventCompleted, msgEventCompleted, eventID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}
