package repository

import (
	"context"
	"errors"

	"djqueue-backend/internal/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("duplicate")
	// ErrTxRetriesExhausted is returned when a transaction kept conflicting
	ErrTxRetriesExhausted = errors.New("transaction retries exhausted")
)

// UserStore persists the user mirror rows
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	// GetUserForUpdate locks the user row until the transaction ends.
	GetUserForUpdate(ctx context.Context, id string) (*models.User, error)
	AssignRole(ctx context.Context, id, name string, role models.Role) error
	UpdateAvatarURL(ctx context.Context, id, avatarURL string) error
	UpdatePushToken(ctx context.Context, id string, pushToken *string) error
}

// ProfileStore persists DJ and party thrower profiles
type ProfileStore interface {
	CreateDJProfile(ctx context.Context, profile *models.DJProfile) error
	CreatePartyThrowerProfile(ctx context.Context, profile *models.PartyThrowerProfile) error
	GetDJProfile(ctx context.Context, userID string) (*models.DJProfile, error)
	GetPartyThrowerProfile(ctx context.Context, userID string) (*models.PartyThrowerProfile, error)
	UpdateDJProfile(ctx context.Context, userID string, update models.DJProfileUpdate) error
	UpdatePartyThrowerBio(ctx context.Context, userID, bio string) error
	IncrementDJTotalEvents(ctx context.Context, userID string) error
	IncrementEventsCreated(ctx context.Context, userID string) error
	SetAverageRating(ctx context.Context, userID string, role models.Role, average float64) error
}

// EventStore persists events
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	// GetEventForUpdate locks the event row until the transaction ends.
	GetEventForUpdate(ctx context.Context, id string) (*models.Event, error)
	GetEventDetail(ctx context.Context, id string) (*models.EventDetail, error)
	ListEvents(ctx context.Context, excludeCancelled bool) ([]*models.EventDetail, error)
	// SaveEventState writes status, selected_dj_id and pending_dj_id.
	SaveEventState(ctx context.Context, event *models.Event) error
}

// QueueStore persists queue entries
type QueueStore interface {
	InsertQueueEntry(ctx context.Context, entry *models.QueueEntry) error
	DeleteQueueEntry(ctx context.Context, eventID, djID string) (bool, error)
	QueueEntryExists(ctx context.Context, eventID, djID string) (bool, error)
	ListQueue(ctx context.Context, eventID string) ([]*models.QueueEntryView, error)
	ListQueuedDJIDs(ctx context.Context, eventID string) ([]string, error)
}

// MessageStore persists messages
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *models.Message) error
	ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error)
	ListThread(ctx context.Context, eventID, userID, counterpartID string) ([]*models.MessageView, error)
	MarkThreadRead(ctx context.Context, eventID, receiverID, senderID string) (int64, error)
	ListEventMessages(ctx context.Context, eventID, userID string) ([]*models.MessageView, error)
	CountUnreadMessages(ctx context.Context, userID string) (int, error)
}

// RatingStore persists ratings
type RatingStore interface {
	InsertRating(ctx context.Context, rating *models.Rating) error
	RatingExists(ctx context.Context, eventID, ratedUserID, raterUserID string) (bool, error)
	AverageRating(ctx context.Context, userID string) (float64, int, error)
	ListRatingsForUser(ctx context.Context, userID string) ([]*models.RatingView, error)
}

// NotificationStore persists notifications
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]*models.NotificationView, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	// MarkNotificationRead returns false when no notification with id belongs to userID.
	MarkNotificationRead(ctx context.Context, userID, id string) (bool, error)
}

// Querier is the full set of queries available inside a unit of work
type Querier interface {
	UserStore
	ProfileStore
	EventStore
	QueueStore
	MessageStore
	RatingStore
	NotificationStore
}

// Store runs units of work against the persistence layer
type Store interface {
	// InTx runs fn in one serializable transaction. fn may run more than
	// once when the transaction is retried after a conflict, so it must not
	// have side effects outside q.
	InTx(ctx context.Context, fn func(q Querier) error) error
	// View runs fn against a read-only, non-transactional view.
	View(ctx context.Context, fn func(q Querier) error) error
}
