package repository

import (
	"context"
	"fmt"

	"djqueue-backend/internal/models"
)

// QueueRepository handles database operations for event queue entries
type QueueRepository struct {
	db DBTX
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db DBTX) *QueueRepository {
	return &QueueRepository{db: db}
}

// InsertQueueEntry adds a DJ to an event queue
func (r *QueueRepository) InsertQueueEntry(ctx context.Context, entry *models.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (id, event_id, dj_id, joined_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, entry.ID, entry.EventID, entry.DJID, entry.JoinedAt)
	if err != nil {
		return mapWriteError(err, "insert queue entry")
	}
	return nil
}

// DeleteQueueEntry removes a DJ from an event queue and reports whether an entry existed
func (r *QueueRepository) DeleteQueueEntry(ctx context.Context, eventID, djID string) (bool, error) {
	query := `DELETE FROM queue_entries WHERE event_id = $1 AND dj_id = $2`
	result, err := r.db.Exec(ctx, query, eventID, djID)
	if err != nil {
		return false, fmt.Errorf("failed to delete queue entry: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// QueueEntryExists checks if a DJ is queued for an event
func (r *QueueRepository) QueueEntryExists(ctx context.Context, eventID, djID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM queue_entries WHERE event_id = $1 AND dj_id = $2)`
	var exists bool
	err := r.db.QueryRow(ctx, query, eventID, djID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check queue entry: %w", err)
	}
	return exists, nil
}

// ListQueue retrieves an event queue in join order with each DJ's live profile data
func (r *QueueRepository) ListQueue(ctx context.Context, eventID string) ([]*models.QueueEntryView, error) {
	query := `
		SELECT q.id, q.event_id, q.dj_id, q.joined_at, u.name, u.avatar_url,
		       COALESCE(p.average_rating, 0), COALESCE(p.genres, ''), COALESCE(p.total_events, 0)
		FROM queue_entries q
		JOIN users u ON u.id = q.dj_id
		LEFT JOIN dj_profiles p ON p.user_id = q.dj_id
		WHERE q.event_id = $1
		ORDER BY q.joined_at ASC, q.id
	`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntryView
	for rows.Next() {
		var v models.QueueEntryView
		err := rows.Scan(
			&v.ID, &v.EventID, &v.DJID, &v.JoinedAt, &v.DJName, &v.AvatarURL,
			&v.AverageRating, &v.Genres, &v.TotalEvents,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue: %w", err)
	}

	return entries, nil
}

// ListQueuedDJIDs retrieves the ids of every DJ queued for an event in join order
func (r *QueueRepository) ListQueuedDJIDs(ctx context.Context, eventID string) ([]string, error) {
	query := `SELECT dj_id FROM queue_entries WHERE event_id = $1 ORDER BY joined_at ASC, id`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued djs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan queued dj: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queued djs: %w", err)
	}

	return ids, nil
}
