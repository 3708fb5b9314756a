package services

import (
	"context"
	"strings"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"
)

// MessageService handles messages between event participants
type MessageService struct {
	core
}

// NewMessageService creates a new message service
func NewMessageService(store repository.Store, dispatcher *Dispatcher) *MessageService {
	return &MessageService{core: newCore(store, dispatcher)}
}

// SendMessage appends a message to an event thread and notifies the receiver
func (s *MessageService) SendMessage(ctx context.Context, caller Caller, eventID, receiverID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, newError(KindInvalidInput, "message content is required")
	}
	if receiverID == "" {
		return nil, newError(KindInvalidInput, "receiver_id is required")
	}
	if receiverID == caller.UserID {
		return nil, newError(KindInvalidInput, "cannot send a message to yourself")
	}

	var msg *models.Message
	err := s.update(ctx, func(q repository.Querier, out *Outbox, now time.Time) error {
		if _, err := q.GetEvent(ctx, eventID); err != nil {
			return notFoundAs(err, "event not found")
		}
		if _, err := q.GetUser(ctx, receiverID); err != nil {
			return notFoundAs(err, "receiver not found")
		}

		msg = &models.Message{
			ID:         s.newID(),
			EventID:    eventID,
			SenderID:   caller.UserID,
			ReceiverID: receiverID,
			Content:    content,
			CreatedAt:  now,
		}
		if err := q.InsertMessage(ctx, msg); err != nil {
			return err
		}

		return out.Notify(ctx, receiverID, models.NotificationMessage, senderLabel(caller.Name)+" sent you a message", eventID)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func senderLabel(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "Someone"
}

// ListConversations returns the user's threads, most recent first
func (s *MessageService) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	err := s.view(ctx, func(q repository.Querier) error {
		var err error
		convs, err = q.ListConversations(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// GetConversation returns one thread in chronological order and marks the
// messages addressed to the user as read
func (s *MessageService) GetConversation(ctx context.Context, userID, eventID, counterpartID string) ([]*models.MessageView, error) {
	var thread []*models.MessageView
	err := s.update(ctx, func(q repository.Querier, _ *Outbox, _ time.Time) error {
		var err error
		thread, err = q.ListThread(ctx, eventID, userID, counterpartID)
		if err != nil {
			return err
		}
		if _, err := q.MarkThreadRead(ctx, eventID, userID, counterpartID); err != nil {
			return err
		}
		for _, m := range thread {
			if m.ReceiverID == userID {
				m.Read = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// GetEventMessages returns every message of an event the user took part in
func (s *MessageService) GetEventMessages(ctx context.Context, userID, eventID string) ([]*models.MessageView, error) {
	var msgs []*models.MessageView
	err := s.view(ctx, func(q repository.Querier) error {
		if _, err := q.GetEvent(ctx, eventID); err != nil {
			return notFoundAs(err, "event not found")
		}
		var err error
		msgs, err = q.ListEventMessages(ctx, eventID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// UnreadCount counts unread messages addressed to the user
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.view(ctx, func(q repository.Querier) error {
		var err error
		count, err = q.CountUnreadMessages(ctx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
