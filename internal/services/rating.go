package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	MinScore = 1
	MaxScore = 5
)

// RatingService records ratings and keeps profile averages current
type RatingService struct {
	core
}

// NewRatingService creates a new rating service
func NewRatingService(store repository.Store, dispatcher *Dispatcher) *RatingService {
	return &RatingService{core: newCore(store, dispatcher)}
}

// SubmitRating stores a rating and recomputes the ratee's average in the
// same transaction
func (s *RatingService) SubmitRating(ctx context.Context, caller Caller, eventID, rateeID string, score int, review *string) (*models.Rating, error) {
	if score < MinScore || score > MaxScore {
		return nil, newError(KindInvalidInput, "rating must be between 1 and 5")
	}
	if rateeID == "" {
		return nil, newError(KindInvalidInput, "rated_user_id is required")
	}
	if rateeID == caller.UserID {
		return nil, newError(KindInvalidInput, "cannot rate yourself")
	}
	if review != nil {
		trimmed := strings.TrimSpace(*review)
		if trimmed == "" {
			review = nil
		} else {
			review = &trimmed
		}
	}

	var rating *models.Rating
	var (
		average float64
		count   int
	)
	err := s.update(ctx, func(q repository.Querier, _ *Outbox, now time.Time) error {
		if _, err := q.GetEvent(ctx, eventID); err != nil {
			return notFoundAs(err, "event not found")
		}
		ratee, err := q.GetUserForUpdate(ctx, rateeID)
		if err != nil {
			return notFoundAs(err, "rated user not found")
		}

		exists, err := q.RatingExists(ctx, eventID, rateeID, caller.UserID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateRating
		}

		rating = &models.Rating{
			ID:          s.newID(),
			EventID:     eventID,
			RatedUserID: rateeID,
			RaterUserID: caller.UserID,
			Score:       score,
			Review:      review,
			CreatedAt:   now,
		}
		if err := q.InsertRating(ctx, rating); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateRating
			}
			return err
		}

		average, count, err = q.AverageRating(ctx, rateeID)
		if err != nil {
			return err
		}
		if !ratee.Role.Valid() {
			return nil
		}
		return q.SetAverageRating(ctx, rateeID, ratee.Role, average)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("event_id", eventID).
		Str("rated_user_id", rateeID).
		Float64("average_rating", average).
		Int("rating_count", count).
		Msg("Rating recorded")

	return rating, nil
}

// ListRatings returns the ratings a user received, most recent first
func (s *RatingService) ListRatings(ctx context.Context, userID string) ([]*models.RatingView, error) {
	var ratings []*models.RatingView
	err := s.view(ctx, func(q repository.Querier) error {
		var err error
		ratings, err = q.ListRatingsForUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ratings, nil
}
