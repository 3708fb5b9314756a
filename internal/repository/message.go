package repository

import (
	"context"
	"fmt"

	"djqueue-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// MessageRepository handles database operations for messages
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// InsertMessage creates a new message
func (r *MessageRepository) InsertMessage(ctx context.Context, m *models.Message) error {
	query := `
		INSERT INTO messages (id, event_id, sender_id, receiver_id, content, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		m.ID, m.EventID, m.SenderID, m.ReceiverID, m.Content, m.Read, m.CreatedAt,
	)
	if err != nil {
		return mapWriteError(err, "insert message")
	}
	return nil
}

// ListConversations groups the user's messages by (event, counterpart),
// most recent thread first
func (r *MessageRepository) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	query := `
		WITH threads AS (
			SELECT m.*,
			       CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS other_user_id
			FROM messages m
			WHERE m.sender_id = $1 OR m.receiver_id = $1
		),
		latest AS (
			SELECT DISTINCT ON (event_id, other_user_id)
			       event_id, other_user_id, content, created_at
			FROM threads
			ORDER BY event_id, other_user_id, created_at DESC, id DESC
		)
		SELECT l.event_id, e.title, l.other_user_id, u.name, l.content, l.created_at,
		       (SELECT COUNT(*) FROM threads t
		        WHERE t.event_id = l.event_id AND t.other_user_id = l.other_user_id
		          AND t.receiver_id = $1 AND NOT t.read)
		FROM latest l
		JOIN events e ON e.id = l.event_id
		JOIN users u ON u.id = l.other_user_id
		ORDER BY l.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		var c models.Conversation
		err := rows.Scan(
			&c.EventID, &c.EventTitle, &c.OtherUserID, &c.OtherUserName,
			&c.LastMessage, &c.LastMessageTime, &c.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

const messageViewQuery = `
	SELECT m.id, m.event_id, m.sender_id, m.receiver_id, m.content, m.read, m.created_at,
	       sender.name, receiver.name
	FROM messages m
	JOIN users sender ON sender.id = m.sender_id
	JOIN users receiver ON receiver.id = m.receiver_id
`

// ListThread retrieves the messages between two users in an event, oldest first
func (r *MessageRepository) ListThread(ctx context.Context, eventID, userID, counterpartID string) ([]*models.MessageView, error) {
	query := messageViewQuery + `
		WHERE m.event_id = $1
		  AND ((m.sender_id = $2 AND m.receiver_id = $3) OR (m.sender_id = $3 AND m.receiver_id = $2))
		ORDER BY m.created_at ASC, m.id
	`
	rows, err := r.db.Query(ctx, query, eventID, userID, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list thread: %w", err)
	}
	return collectMessageViews(rows)
}

// ListEventMessages retrieves every message of an event the user sent or received, oldest first
func (r *MessageRepository) ListEventMessages(ctx context.Context, eventID, userID string) ([]*models.MessageView, error) {
	query := messageViewQuery + `
		WHERE m.event_id = $1 AND (m.sender_id = $2 OR m.receiver_id = $2)
		ORDER BY m.created_at ASC, m.id
	`
	rows, err := r.db.Query(ctx, query, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event messages: %w", err)
	}
	return collectMessageViews(rows)
}

func collectMessageViews(rows pgx.Rows) ([]*models.MessageView, error) {
	defer rows.Close()

	var messages []*models.MessageView
	for rows.Next() {
		var v models.MessageView
		err := rows.Scan(
			&v.ID, &v.EventID, &v.SenderID, &v.ReceiverID, &v.Content, &v.Read, &v.CreatedAt,
			&v.SenderName, &v.ReceiverName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// MarkThreadRead marks every message from sender to receiver in an event as read
func (r *MessageRepository) MarkThreadRead(ctx context.Context, eventID, receiverID, senderID string) (int64, error) {
	query := `
		UPDATE messages SET read = TRUE
		WHERE event_id = $1 AND receiver_id = $2 AND sender_id = $3 AND NOT read
	`
	result, err := r.db.Exec(ctx, query, eventID, receiverID, senderID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark thread read: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountUnreadMessages counts unread messages addressed to a user
func (r *MessageRepository) CountUnreadMessages(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND NOT read`
	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}
