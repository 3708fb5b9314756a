package repository

import (
	"context"
	"fmt"

	"djqueue-backend/internal/models"
)

// ProfileRepository handles database operations for DJ and party thrower profiles
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateDJProfile creates a DJ profile
func (r *ProfileRepository) CreateDJProfile(ctx context.Context, p *models.DJProfile) error {
	query := `
		INSERT INTO dj_profiles (user_id, bio, genres, experience_years, average_rating, total_events, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		p.UserID, p.Bio, p.Genres, p.ExperienceYears, p.AverageRating, p.TotalEvents, p.CreatedAt,
	)
	if err != nil {
		return mapWriteError(err, "create dj profile")
	}
	return nil
}

// CreatePartyThrowerProfile creates a party thrower profile
func (r *ProfileRepository) CreatePartyThrowerProfile(ctx context.Context, p *models.PartyThrowerProfile) error {
	query := `
		INSERT INTO party_thrower_profiles (user_id, bio, average_rating, total_events_created, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, p.UserID, p.Bio, p.AverageRating, p.TotalEventsCreated, p.CreatedAt)
	if err != nil {
		return mapWriteError(err, "create party thrower profile")
	}
	return nil
}

// GetDJProfile retrieves a DJ profile joined with the user's name and avatar
func (r *ProfileRepository) GetDJProfile(ctx context.Context, userID string) (*models.DJProfile, error) {
	query := `
		SELECT p.user_id, u.name, u.avatar_url, p.bio, p.genres, p.experience_years,
		       p.average_rating, p.total_events, p.created_at
		FROM dj_profiles p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1
	`
	var p models.DJProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Name, &p.AvatarURL, &p.Bio, &p.Genres, &p.ExperienceYears,
		&p.AverageRating, &p.TotalEvents, &p.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "dj profile")
	}
	return &p, nil
}

// GetPartyThrowerProfile retrieves a party thrower profile joined with the user's name and avatar
func (r *ProfileRepository) GetPartyThrowerProfile(ctx context.Context, userID string) (*models.PartyThrowerProfile, error) {
	query := `
		SELECT p.user_id, u.name, u.avatar_url, p.bio, p.average_rating, p.total_events_created, p.created_at
		FROM party_thrower_profiles p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1
	`
	var p models.PartyThrowerProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Name, &p.AvatarURL, &p.Bio, &p.AverageRating, &p.TotalEventsCreated, &p.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "party thrower profile")
	}
	return &p, nil
}

// UpdateDJProfile updates the client-writable DJ fields that are set in update
func (r *ProfileRepository) UpdateDJProfile(ctx context.Context, userID string, update models.DJProfileUpdate) error {
	query := `
		UPDATE dj_profiles
		SET bio = COALESCE($1, bio),
		    genres = COALESCE($2, genres),
		    experience_years = COALESCE($3, experience_years)
		WHERE user_id = $4
	`
	result, err := r.db.Exec(ctx, query, update.Bio, update.Genres, update.ExperienceYears, userID)
	if err != nil {
		return fmt.Errorf("failed to update dj profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("dj profile: %w", ErrNotFound)
	}
	return nil
}

// UpdatePartyThrowerBio updates a party thrower's bio
func (r *ProfileRepository) UpdatePartyThrowerBio(ctx context.Context, userID, bio string) error {
	query := `UPDATE party_thrower_profiles SET bio = $1 WHERE user_id = $2`
	result, err := r.db.Exec(ctx, query, bio, userID)
	if err != nil {
		return fmt.Errorf("failed to update party thrower profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("party thrower profile: %w", ErrNotFound)
	}
	return nil
}

// IncrementDJTotalEvents bumps the DJ's lifetime selection counter
func (r *ProfileRepository) IncrementDJTotalEvents(ctx context.Context, userID string) error {
	query := `UPDATE dj_profiles SET total_events = total_events + 1 WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to increment dj total events: %w", err)
	}
	return nil
}

// IncrementEventsCreated bumps the party thrower's authored events counter
func (r *ProfileRepository) IncrementEventsCreated(ctx context.Context, userID string) error {
	query := `UPDATE party_thrower_profiles SET total_events_created = total_events_created + 1 WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to increment events created: %w", err)
	}
	return nil
}

// SetAverageRating writes the recomputed average to the profile matching role
func (r *ProfileRepository) SetAverageRating(ctx context.Context, userID string, role models.Role, average float64) error {
	var query string
	switch role {
	case models.RoleDJ:
		query = `UPDATE dj_profiles SET average_rating = $1 WHERE user_id = $2`
	case models.RolePartyThrower:
		query = `UPDATE party_thrower_profiles SET average_rating = $1 WHERE user_id = $2`
	default:
		return nil
	}
	if _, err := r.db.Exec(ctx, query, average, userID); err != nil {
		return fmt.Errorf("failed to set average rating: %w", err)
	}
	return nil
}
