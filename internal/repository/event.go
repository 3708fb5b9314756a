package repository

import (
	"context"
	"fmt"

	"djqueue-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// EventRepository handles database operations for events
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates a new event repository
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `
	e.id, e.creator_id, e.title, e.location, e.location_private, e.size, e.audience,
	e.age_range_min, e.age_range_max, e.occupancy, e.theme, e.music_genres,
	e.time_frame_start, e.time_frame_end, e.provided_equipment, e.necessary_equipment,
	e.additional_notes, e.status, e.selected_dj_id, e.pending_dj_id, e.created_at`

func eventScanTargets(e *models.Event) []any {
	return []any{
		&e.ID, &e.CreatorID, &e.Title, &e.Location, &e.LocationPrivate, &e.Size, &e.Audience,
		&e.AgeRangeMin, &e.AgeRangeMax, &e.Occupancy, &e.Theme, &e.MusicGenres,
		&e.StartsAt, &e.EndsAt, &e.ProvidedEquipment, &e.NecessaryEquipment,
		&e.AdditionalNotes, &e.Status, &e.SelectedDJID, &e.PendingDJID, &e.CreatedAt,
	}
}

// CreateEvent creates a new event
func (r *EventRepository) CreateEvent(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (
			id, creator_id, title, location, location_private, size, audience,
			age_range_min, age_range_max, occupancy, theme, music_genres,
			time_frame_start, time_frame_end, provided_equipment, necessary_equipment,
			additional_notes, status, selected_dj_id, pending_dj_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err := r.db.Exec(ctx, query,
		e.ID, e.CreatorID, e.Title, e.Location, e.LocationPrivate, e.Size, e.Audience,
		e.AgeRangeMin, e.AgeRangeMax, e.Occupancy, e.Theme, e.MusicGenres,
		e.StartsAt, e.EndsAt, e.ProvidedEquipment, e.NecessaryEquipment,
		e.AdditionalNotes, e.Status, e.SelectedDJID, e.PendingDJID, e.CreatedAt,
	)
	if err != nil {
		return mapWriteError(err, "create event")
	}
	return nil
}

// GetEvent retrieves an event by ID
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return r.getEvent(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id)
}

// GetEventForUpdate retrieves an event by ID and locks the row
func (r *EventRepository) GetEventForUpdate(ctx context.Context, id string) (*models.Event, error) {
	return r.getEvent(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1 FOR UPDATE`, id)
}

func (r *EventRepository) getEvent(ctx context.Context, query, id string) (*models.Event, error) {
	var e models.Event
	if err := r.db.QueryRow(ctx, query, id).Scan(eventScanTargets(&e)...); err != nil {
		return nil, notFound(err, "event")
	}
	return &e, nil
}

const eventDetailQuery = `
	SELECT ` + eventColumns + `,
		creator.name, selected.name, pending.name,
		(SELECT COUNT(*) FROM queue_entries q WHERE q.event_id = e.id)
	FROM events e
	JOIN users creator ON creator.id = e.creator_id
	LEFT JOIN users selected ON selected.id = e.selected_dj_id
	LEFT JOIN users pending ON pending.id = e.pending_dj_id
`

func scanEventDetail(row pgx.Row) (*models.EventDetail, error) {
	var d models.EventDetail
	targets := append(eventScanTargets(&d.Event),
		&d.CreatorName, &d.SelectedDJName, &d.PendingDJName, &d.QueueCount,
	)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	d.State = d.Event.State()
	return &d, nil
}

// GetEventDetail retrieves an event with participant names and queue size
func (r *EventRepository) GetEventDetail(ctx context.Context, id string) (*models.EventDetail, error) {
	detail, err := scanEventDetail(r.db.QueryRow(ctx, eventDetailQuery+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "event")
	}
	return detail, nil
}

// ListEvents retrieves events newest first
func (r *EventRepository) ListEvents(ctx context.Context, excludeCancelled bool) ([]*models.EventDetail, error) {
	query := eventDetailQuery + `
		WHERE NOT $1 OR e.status <> 'cancelled'
		ORDER BY e.created_at DESC, e.id
	`
	rows, err := r.db.Query(ctx, query, excludeCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.EventDetail
	for rows.Next() {
		detail, err := scanEventDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, detail)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// SaveEventState writes the lifecycle columns of an event
func (r *EventRepository) SaveEventState(ctx context.Context, e *models.Event) error {
	query := `UPDATE events SET status = $1, selected_dj_id = $2, pending_dj_id = $3 WHERE id = $4`
	result, err := r.db.Exec(ctx, query, e.Status, e.SelectedDJID, e.PendingDJID, e.ID)
	if err != nil {
		return fmt.Errorf("failed to save event state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("event: %w", ErrNotFound)
	}
	return nil
}
