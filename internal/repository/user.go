package repository

import (
	"context"
	"fmt"

	"djqueue-backend/internal/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, role, avatar_url, push_token, created_at`

// CreateUser inserts a mirror row for an identity seen for the first time
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, role, avatar_url, push_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Name, user.Role, user.AvatarURL, user.PushToken, user.CreatedAt,
	)
	if err != nil {
		return mapWriteError(err, "create user")
	}
	return nil
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserForUpdate retrieves a user by ID and locks the row
func (r *UserRepository) GetUserForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *UserRepository) getUser(ctx context.Context, query, id string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Role, &user.AvatarURL, &user.PushToken, &user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// AssignRole sets the display name and role of a user still in the unset role
func (r *UserRepository) AssignRole(ctx context.Context, id, name string, role models.Role) error {
	query := `UPDATE users SET name = $1, role = $2 WHERE id = $3 AND role = 'unset'`
	result, err := r.db.Exec(ctx, query, name, role, id)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user with unset role: %w", ErrNotFound)
	}
	return nil
}

// UpdateAvatarURL updates the avatar URL for a user
func (r *UserRepository) UpdateAvatarURL(ctx context.Context, id, avatarURL string) error {
	query := `UPDATE users SET avatar_url = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, avatarURL, id)
	if err != nil {
		return fmt.Errorf("failed to update avatar url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, pushToken, id)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}
