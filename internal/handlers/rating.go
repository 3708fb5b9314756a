package handlers

import (
	"net/http"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// RatingHandler handles rating HTTP requests
type RatingHandler struct {
	ratingService *services.RatingService
}

// NewRatingHandler creates a new rating handler
func NewRatingHandler(ratingService *services.RatingService) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
	}
}

// SubmitRatingRequest represents the request body for rating a participant
type SubmitRatingRequest struct {
	EventID     string  `json:"event_id" validate:"required"`
	RatedUserID string  `json:"rated_user_id" validate:"required"`
	Rating      int     `json:"rating" validate:"required,min=1,max=5"`
	Review      *string `json:"review" validate:"omitempty,max=2000"`
}

// SubmitRating handles POST /api/v1/ratings
func (h *RatingHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req SubmitRatingRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rating, err := h.ratingService.SubmitRating(r.Context(), caller, req.EventID, req.RatedUserID, req.Rating, req.Review)
	if err != nil {
		respondServiceError(w, r, err, "submit rating")
		return
	}

	log.Info().
		Str("user_id", caller.UserID).
		Str("event_id", req.EventID).
		Str("rated_user_id", req.RatedUserID).
		Int("rating", req.Rating).
		Msg("Rating submitted")

	respondJSON(w, http.StatusCreated, rating)
}

// ListRatings handles GET /api/v1/ratings/users/{user_id}
func (h *RatingHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.ratingService.ListRatings(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		respondServiceError(w, r, err, "list ratings")
		return
	}
	if ratings == nil {
		ratings = []*models.RatingView{}
	}
	respondJSON(w, http.StatusOK, ratings)
}
