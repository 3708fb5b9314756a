package handlers

import (
	"net/http"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// UserHandler handles user and profile HTTP requests
type UserHandler struct {
	userService   *services.UserService
	avatarService *services.AvatarService
}

// NewUserHandler creates a new user handler. avatarService may be nil when
// no bucket is configured.
func NewUserHandler(userService *services.UserService, avatarService *services.AvatarService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		avatarService: avatarService,
	}
}

// Me handles GET /api/v1/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Me(r.Context(), caller)
	if err != nil {
		respondServiceError(w, r, err, "get user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// CompleteProfileRequest represents the one-time onboarding body
type CompleteProfileRequest struct {
	Name            string      `json:"name" validate:"required,max=100"`
	Role            models.Role `json:"role" validate:"required,oneof=dj party_thrower"`
	Bio             string      `json:"bio" validate:"max=2000"`
	Genres          string      `json:"genres" validate:"max=500"`
	ExperienceYears *int        `json:"experience_years" validate:"omitempty,min=0,max=80"`
}

// CompleteProfile handles POST /api/v1/profiles/complete
func (h *UserHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req CompleteProfileRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.userService.CompleteProfile(r.Context(), caller, services.CompleteProfileInput{
		Name:            req.Name,
		Role:            req.Role,
		Bio:             req.Bio,
		Genres:          req.Genres,
		ExperienceYears: req.ExperienceYears,
	})
	if err != nil {
		respondServiceError(w, r, err, "complete profile")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// GetDJProfile handles GET /api/v1/profiles/dj/{user_id}
func (h *UserHandler) GetDJProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.GetDJProfile(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		respondServiceError(w, r, err, "get dj profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// GetPartyThrowerProfile handles GET /api/v1/profiles/party-thrower/{user_id}
func (h *UserHandler) GetPartyThrowerProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.GetPartyThrowerProfile(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		respondServiceError(w, r, err, "get party thrower profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// UpdateDJProfileRequest represents a partial DJ profile update
type UpdateDJProfileRequest struct {
	Bio             *string `json:"bio" validate:"omitempty,max=2000"`
	Genres          *string `json:"genres" validate:"omitempty,max=500"`
	ExperienceYears *int    `json:"experience_years" validate:"omitempty,min=0,max=80"`
}

// UpdateDJProfile handles PATCH /api/v1/profiles/dj
func (h *UserHandler) UpdateDJProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req UpdateDJProfileRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.userService.UpdateDJProfile(r.Context(), caller, models.DJProfileUpdate{
		Bio:             req.Bio,
		Genres:          req.Genres,
		ExperienceYears: req.ExperienceYears,
	})
	if err != nil {
		respondServiceError(w, r, err, "update dj profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// UpdatePartyThrowerProfileRequest represents a partial party thrower profile update
type UpdatePartyThrowerProfileRequest struct {
	Bio *string `json:"bio" validate:"omitempty,max=2000"`
}

// UpdatePartyThrowerProfile handles PATCH /api/v1/profiles/party-thrower
func (h *UserHandler) UpdatePartyThrowerProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req UpdatePartyThrowerProfileRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.userService.UpdatePartyThrowerProfile(r.Context(), caller, req.Bio)
	if err != nil {
		respondServiceError(w, r, err, "update party thrower profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// AvatarRequest represents a request for an avatar upload URL
type AvatarRequest struct {
	ContentType string `json:"content_type" validate:"required"`
}

// UploadAvatar handles POST /api/v1/profiles/avatar
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if h.avatarService == nil {
		respondError(w, "Avatar uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	var req AvatarRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	upload, err := h.avatarService.UploadURL(r.Context(), caller, req.ContentType)
	if err != nil {
		respondServiceError(w, r, err, "generate upload URL")
		return
	}
	respondJSON(w, http.StatusOK, upload)
}

// PushTokenRequest represents a device token registration; null clears it
type PushTokenRequest struct {
	Token *string `json:"token" validate:"omitempty,max=200"`
}

// RegisterPushToken handles PUT /api/v1/me/push-token
func (h *UserHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req PushTokenRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.userService.RegisterPushToken(r.Context(), caller, req.Token); err != nil {
		respondServiceError(w, r, err, "register push token")
		return
	}

	log.Info().Str("user_id", caller.UserID).Bool("cleared", req.Token == nil).Msg("Push token updated")
	w.WriteHeader(http.StatusNoContent)
}
