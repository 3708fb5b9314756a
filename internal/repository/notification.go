package repository

import (
	"context"
	"fmt"

	"djqueue-backend/internal/models"
)

// NotificationRepository handles database operations for notifications
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// InsertNotification creates a new notification
func (r *NotificationRepository) InsertNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, message, event_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, n.ID, n.UserID, n.Type, n.Message, n.EventID, n.Read, n.CreatedAt)
	if err != nil {
		return mapWriteError(err, "insert notification")
	}
	return nil
}

// ListNotifications retrieves the newest notifications of a user with event titles
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]*models.NotificationView, error) {
	query := `
		SELECT n.id, n.user_id, n.type, n.message, n.event_id, n.read, n.created_at, e.title
		FROM notifications n
		LEFT JOIN events e ON e.id = n.event_id
		WHERE n.user_id = $1
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.NotificationView
	for rows.Next() {
		var v models.NotificationView
		err := rows.Scan(
			&v.ID, &v.UserID, &v.Type, &v.Message, &v.EventID, &v.Read, &v.CreatedAt, &v.EventTitle,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// CountUnreadNotifications counts a user's unread notifications
func (r *NotificationRepository) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`
	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead sets the read flag on a notification owned by userID
func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, userID, id string) (bool, error) {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`
	result, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
