package models

import "time"

// Role is the marketplace role of a user
type Role string

const (
	RoleUnset        Role = "unset"
	RoleDJ           Role = "dj"
	RolePartyThrower Role = "party_thrower"
)

// Valid reports whether r is an assignable role
func (r Role) Valid() bool {
	return r == RoleDJ || r == RolePartyThrower
}

// User mirrors an identity issued by the external identity provider
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	PushToken *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// DJProfile holds DJ attributes and aggregates
type DJProfile struct {
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	AvatarURL       *string   `json:"avatar_url,omitempty"`
	Bio             string    `json:"bio"`
	Genres          string    `json:"genres"`
	ExperienceYears int       `json:"experience_years"`
	AverageRating   float64   `json:"average_rating"`
	TotalEvents     int       `json:"total_events"`
	CreatedAt       time.Time `json:"created_at"`
}

// PartyThrowerProfile holds party thrower attributes and aggregates
type PartyThrowerProfile struct {
	UserID             string    `json:"user_id"`
	Name               string    `json:"name"`
	AvatarURL          *string   `json:"avatar_url,omitempty"`
	Bio                string    `json:"bio"`
	AverageRating      float64   `json:"average_rating"`
	TotalEventsCreated int       `json:"total_events_created"`
	CreatedAt          time.Time `json:"created_at"`
}

// DJProfileUpdate carries the client-writable DJ profile fields; nil means unchanged
type DJProfileUpdate struct {
	Bio             *string
	Genres          *string
	ExperienceYears *int
}

// Message is one message between two participants of an event
type Message struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageView is a message annotated with participant names
type MessageView struct {
	Message
	SenderName   string `json:"sender_name"`
	ReceiverName string `json:"receiver_name"`
}

// Conversation summarises one (event, counterpart) thread from a user's viewpoint
type Conversation struct {
	EventID         string    `json:"event_id"`
	EventTitle      string    `json:"event_title"`
	OtherUserID     string    `json:"other_user_id"`
	OtherUserName   string    `json:"other_user_name"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
}

// Rating is one participant's score for another participant of an event
type Rating struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	RatedUserID string    `json:"rated_user_id"`
	RaterUserID string    `json:"rater_user_id"`
	Score       int       `json:"rating"`
	Review      *string   `json:"review,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RatingView is a rating annotated with rater name and event title
type RatingView struct {
	Rating
	RaterName  string `json:"rater_name"`
	EventTitle string `json:"event_title"`
}

// NotificationType classifies a notification
type NotificationType string

const (
	NotificationQueueJoin          NotificationType = "queue_join"
	NotificationInvitation         NotificationType = "invitation"
	NotificationQueueClosed        NotificationType = "queue_closed"
	NotificationInvitationDeclined NotificationType = "invitation_declined"
	NotificationQueueReopened      NotificationType = "queue_reopened"
	NotificationDJOptedOut         NotificationType = "dj_opted_out"
	NotificationEventCancelled     NotificationType = "event_cancelled"
	NotificationEventCompleted     NotificationType = "event_completed"
	NotificationMessage            NotificationType = "message"
)

// Notification is a durable record addressed to one user
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	EventID   *string          `json:"event_id,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationView is a notification annotated with its event title
type NotificationView struct {
	Notification
	EventTitle *string `json:"event_title,omitempty"`
}
