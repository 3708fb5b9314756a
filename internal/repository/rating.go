package repository

import (
	"context"
	"fmt"

	"djqueue-backend/internal/models"
)

// RatingRepository handles database operations for ratings
type RatingRepository struct {
	db DBTX
}

// NewRatingRepository creates a new rating repository
func NewRatingRepository(db DBTX) *RatingRepository {
	return &RatingRepository{db: db}
}

// InsertRating creates a new rating; ErrDuplicate when the rater already rated the ratee for the event
func (r *RatingRepository) InsertRating(ctx context.Context, rating *models.Rating) error {
	query := `
		INSERT INTO ratings (id, event_id, rated_user_id, rater_user_id, rating, review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		rating.ID, rating.EventID, rating.RatedUserID, rating.RaterUserID,
		rating.Score, rating.Review, rating.CreatedAt,
	)
	if err != nil {
		return mapWriteError(err, "insert rating")
	}
	return nil
}

// RatingExists checks if the rater already rated the ratee for the event
func (r *RatingRepository) RatingExists(ctx context.Context, eventID, ratedUserID, raterUserID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM ratings
			WHERE event_id = $1 AND rated_user_id = $2 AND rater_user_id = $3
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, eventID, ratedUserID, raterUserID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check rating existence: %w", err)
	}
	return exists, nil
}

// AverageRating returns the mean and count of every rating a user received
func (r *RatingRepository) AverageRating(ctx context.Context, userID string) (float64, int, error) {
	query := `SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*) FROM ratings WHERE rated_user_id = $1`
	var (
		avg   float64
		count int
	)
	if err := r.db.QueryRow(ctx, query, userID).Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to compute average rating: %w", err)
	}
	return avg, count, nil
}

// ListRatingsForUser retrieves ratings received by a user, most recent first
func (r *RatingRepository) ListRatingsForUser(ctx context.Context, userID string) ([]*models.RatingView, error) {
	query := `
		SELECT r.id, r.event_id, r.rated_user_id, r.rater_user_id, r.rating, r.review, r.created_at,
		       rater.name, e.title
		FROM ratings r
		JOIN users rater ON rater.id = r.rater_user_id
		JOIN events e ON e.id = r.event_id
		WHERE r.rated_user_id = $1
		ORDER BY r.created_at DESC, r.id
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	var ratings []*models.RatingView
	for rows.Next() {
		var v models.RatingView
		err := rows.Scan(
			&v.ID, &v.EventID, &v.RatedUserID, &v.RaterUserID, &v.Score, &v.Review, &v.CreatedAt,
			&v.RaterName, &v.EventTitle,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ratings: %w", err)
	}

	return ratings, nil
}
