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

// UserService handles identity resolution and profiles
type UserService struct {
	core
}

// NewUserService creates a new user service
func NewUserService(store repository.Store) *UserService {
	return &UserService{core: newCore(store, nil)}
}

// Resolve maps a verified identity to its caller, creating the mirror user
// row the first time the subject is seen
func (s *UserService) Resolve(ctx context.Context, id Identity) (Caller, error) {
	if id.Subject == "" {
		return Caller{}, wrapError(KindNotAuthorized, "token has no subject", nil)
	}

	var user *models.User
	err := s.view(ctx, func(q repository.Querier) error {
		var err error
		user, err = q.GetUser(ctx, id.Subject)
		return err
	})
	if err == nil {
		return callerOf(user), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return Caller{}, err
	}

	err = s.update(ctx, func(q repository.Querier, _ *Outbox, now time.Time) error {
		user = &models.User{
			ID:        id.Subject,
			Name:      strings.TrimSpace(id.Name),
			Role:      models.RoleUnset,
			CreatedAt: now,
		}
		return q.CreateUser(ctx, user)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// Created by a concurrent request
		err = s.view(ctx, func(q repository.Querier) error {
			var err error
			user, err = q.GetUser(ctx, id.Subject)
			return err
		})
	}
	if err != nil {
		return Caller{}, err
	}

	log.Info().Str("user_id", user.ID).Msg("User mirrored from identity provider")
	return callerOf(user), nil
}

func callerOf(u *models.User) Caller {
	return Caller{UserID: u.ID, Role: u.Role, Name: u.Name}
}

// Me returns the caller's user row
func (s *UserService) Me(ctx context.Context, caller Caller) (*models.User, error) {
	var user *models.User
	err := s.view(ctx, func(q repository.Querier) error {
		var err error
		user, err = q.GetUser(ctx, caller.UserID)
		return notFoundAs(err, "user not found")
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CompleteProfileInput carries the one-time onboarding fields
type CompleteProfileInput struct {
	Name            string
	Role            models.Role
	Bio             string
	Genres          string
	ExperienceYears *int
}

// CompleteProfile assigns the caller's role and creates the matching
// profile. The role can only be set once.
func (s *UserService) CompleteProfile(ctx context.Context, caller Caller, in CompleteProfileInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, newError(KindInvalidInput, "name is required")
	}
	if !in.Role.Valid() {
		return nil, newError(KindInvalidInput, "role must be dj or party_thrower")
	}
	if in.ExperienceYears != nil && *in.ExperienceYears < 0 {
		return nil, newError(KindInvalidInput, "experience_years must not be negative")
	}

	var user *models.User
	err := s.update(ctx, func(q repository.Querier, _ *Outbox, now time.Time) error {
		current, err := q.GetUserForUpdate(ctx, caller.UserID)
		if err != nil {
			return notFoundAs(err, "user not found")
		}
		if current.Role != models.RoleUnset {
			return ErrRoleAlreadySet
		}
		if err := q.AssignRole(ctx, caller.UserID, name, in.Role); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRoleAlreadySet
			}
			return err
		}

		switch in.Role {
		case models.RoleDJ:
			profile := &models.DJProfile{
				UserID:    caller.UserID,
				Bio:       in.Bio,
				Genres:    in.Genres,
				CreatedAt: now,
			}
			if in.ExperienceYears != nil {
				profile.ExperienceYears = *in.ExperienceYears
			}
			err = q.CreateDJProfile(ctx, profile)
		case models.RolePartyThrower:
			err = q.CreatePartyThrowerProfile(ctx, &models.PartyThrowerProfile{
				UserID:    caller.UserID,
				Bio:       in.Bio,
				CreatedAt: now,
			})
		}
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrRoleAlreadySet
			}
			return err
		}

		current.Name = name
		current.Role = in.Role
		user = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("Profile completed")
	return user, nil
}

// GetDJProfile returns a DJ's public profile
func (s *UserService) GetDJProfile(ctx context.Context, userID string) (*models.DJProfile, error) {
	var profile *models.DJProfile
	err := s.view(ctx, func(q repository.Querier) error {
		var err error
		profile, err = q.GetDJProfile(ctx, userID)
		return notFoundAs(err, "dj profile not found")
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// GetPartyThrowerProfile returns a party thrower's public profile
func (s *UserService) GetPartyThrowerProfile(ctx context.Context, userID string) (*models.PartyThrowerProfile, error) {
	var profile *models.PartyThrowerProfile
	err := s.view(ctx, func(q repository.Querier) error {
		var err error
		profile, err = q.GetPartyThrowerProfile(ctx, userID)
		return notFoundAs(err, "party thrower profile not found")
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateDJProfile changes the caller's own DJ profile fields
func (s *UserService) UpdateDJProfile(ctx context.Context, caller Caller, update models.DJProfileUpdate) (*models.DJProfile, error) {
	if caller.Role != models.RoleDJ {
		return nil, wrapError(KindNotAuthorized, "only DJs have a DJ profile", nil)
	}
	if update.Bio == nil && update.Genres == nil && update.ExperienceYears == nil {
		return nil, newError(KindInvalidInput, "no fields to update")
	}
	if update.ExperienceYears != nil && *update.ExperienceYears < 0 {
		return nil, newError(KindInvalidInput, "experience_years must not be negative")
	}

	var profile *models.DJProfile
	err := s.update(ctx, func(q repository.Querier, _ *Outbox, _ time.Time) error {
		if err := q.UpdateDJProfile(ctx, caller.UserID, update); err != nil {
			return notFoundAs(err, "dj profile not found")
		}
		var err error
		profile, err = q.GetDJProfile(ctx, caller.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdatePartyThrowerProfile changes the caller's own party thrower bio
func (s *UserService) UpdatePartyThrowerProfile(ctx context.Context, caller Caller, bio *string) (*models.PartyThrowerProfile, error) {
	if caller.Role != models.RolePartyThrower {
		return nil, wrapError(KindNotAuthorized, "only party throwers have a party thrower profile", nil)
	}
	if bio == nil {
		return nil, newError(KindInvalidInput, "no fields to update")
	}

	var profile *models.PartyThrowerProfile
	err := s.update(ctx, func(q repository.Querier, _ *Outbox, _ time.Time) error {
		if err := q.UpdatePartyThrowerBio(ctx, caller.UserID, *bio); err != nil {
			return notFoundAs(err, "party thrower profile not found")
		}
		var err error
		profile, err = q.GetPartyThrowerProfile(ctx, caller.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// RegisterPushToken stores the caller's APNs device token; nil clears it
func (s *UserService) RegisterPushToken(ctx context.Context, caller Caller, token *string) error {
	if token != nil {
		trimmed := strings.TrimSpace(*token)
		if trimmed == "" {
			token = nil
		} else {
			token = &trimmed
		}
	}
	return s.update(ctx, func(q repository.Querier, _ *Outbox, _ time.Time) error {
		return q.UpdatePushToken(ctx, caller.UserID, token)
	})
}
