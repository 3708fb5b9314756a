package models

import "time"

// EventStatus is the stored status column of an event
type EventStatus string

const (
	EventStatusOpen      EventStatus = "open"
	EventStatusClosed    EventStatus = "closed"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// EventState is the lifecycle state of an event. Unlike EventStatus it
// distinguishes an open event that has an outstanding invitation.
type EventState string

const (
	StateOpen              EventState = "open"
	StateInvitationPending EventState = "invitation_pending"
	StateClosed            EventState = "closed"
	StateCompleted         EventState = "completed"
	StateCancelled         EventState = "cancelled"
)

// Terminal reports whether no further lifecycle transition is possible
func (s EventState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Event is a party posted by a party thrower
type Event struct {
	ID                 string      `json:"id"`
	CreatorID          string      `json:"creator_id"`
	Title              string      `json:"title"`
	Location           string      `json:"location"`
	LocationPrivate    bool        `json:"location_private"`
	Size               *int        `json:"size,omitempty"`
	Audience           string      `json:"audience,omitempty"`
	AgeRangeMin        *int        `json:"age_range_min,omitempty"`
	AgeRangeMax        *int        `json:"age_range_max,omitempty"`
	Occupancy          *int        `json:"occupancy,omitempty"`
	Theme              string      `json:"theme,omitempty"`
	MusicGenres        string      `json:"music_genres,omitempty"`
	StartsAt           time.Time   `json:"time_frame_start"`
	EndsAt             time.Time   `json:"time_frame_end"`
	ProvidedEquipment  string      `json:"provided_equipment,omitempty"`
	NecessaryEquipment string      `json:"necessary_equipment,omitempty"`
	AdditionalNotes    string      `json:"additional_notes,omitempty"`
	Status             EventStatus `json:"status"`
	SelectedDJID       *string     `json:"selected_dj_id,omitempty"`
	PendingDJID        *string     `json:"pending_dj_id,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

// State derives the lifecycle state from the stored columns
func (e *Event) State() EventState {
	switch e.Status {
	case EventStatusCompleted:
		return StateCompleted
	case EventStatusCancelled:
		return StateCancelled
	case EventStatusClosed:
		return StateClosed
	}
	if e.PendingDJID != nil {
		return StateInvitationPending
	}
	return StateOpen
}

// MoveTo rewrites status and DJ pointers for the target state. The pending
// pointer only survives in StateInvitationPending; the selected pointer only
// in closed and terminal states. djID names the pending DJ for
// StateInvitationPending and the selected DJ for StateClosed; other states
// ignore it.
func (e *Event) MoveTo(to EventState, djID string) {
	switch to {
	case StateOpen:
		e.Status = EventStatusOpen
		e.SelectedDJID = nil
		e.PendingDJID = nil
	case StateInvitationPending:
		e.Status = EventStatusOpen
		e.SelectedDJID = nil
		e.PendingDJID = &djID
	case StateClosed:
		e.Status = EventStatusClosed
		e.SelectedDJID = &djID
		e.PendingDJID = nil
	case StateCompleted:
		e.Status = EventStatusCompleted
		e.PendingDJID = nil
	case StateCancelled:
		e.Status = EventStatusCancelled
		e.PendingDJID = nil
	}
}

// Consistent reports whether the stored columns describe a valid state
func (e *Event) Consistent() bool {
	if e.SelectedDJID != nil && e.PendingDJID != nil {
		return false
	}
	if e.PendingDJID != nil && e.Status != EventStatusOpen {
		return false
	}
	if e.Status == EventStatusClosed && e.SelectedDJID == nil {
		return false
	}
	if e.Status == EventStatusOpen && e.SelectedDJID != nil {
		return false
	}
	return true
}

// IsSelected reports whether userID is the confirmed DJ
func (e *Event) IsSelected(userID string) bool {
	return e.SelectedDJID != nil && *e.SelectedDJID == userID
}

// IsPending reports whether userID holds the outstanding invitation
func (e *Event) IsPending(userID string) bool {
	return e.PendingDJID != nil && *e.PendingDJID == userID
}

// EventDetail is an event with participant names resolved
type EventDetail struct {
	Event
	State          EventState `json:"state"`
	CreatorName    string     `json:"creator_name"`
	SelectedDJName *string    `json:"selected_dj_name,omitempty"`
	PendingDJName  *string    `json:"pending_dj_name,omitempty"`
	QueueCount     int        `json:"queue_count"`
}

// QueueEntry is a DJ's application to an event
type QueueEntry struct {
	ID       string    `json:"id"`
	EventID  string    `json:"event_id"`
	DJID     string    `json:"dj_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// QueueEntryView is a queue entry annotated with the DJ's live profile data
type QueueEntryView struct {
	QueueEntry
	DJName        string  `json:"dj_name"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	AverageRating float64 `json:"average_rating"`
	Genres        string  `json:"genres"`
	TotalEvents   int     `json:"total_events"`
}
