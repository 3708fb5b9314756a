package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// EventHandler handles event, queue and invitation HTTP requests
type EventHandler struct {
	eventService *services.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{
		eventService: eventService,
	}
}

// CreateEventRequest represents the request body for creating an event
type CreateEventRequest struct {
	Title              string    `json:"title" validate:"required,max=200"`
	Location           string    `json:"location" validate:"required,max=500"`
	LocationPrivate    *bool     `json:"location_private"`
	Size               *int      `json:"size" validate:"omitempty,min=0"`
	Audience           string    `json:"audience" validate:"max=200"`
	AgeRangeMin        *int      `json:"age_range_min" validate:"omitempty,min=0,max=120"`
	AgeRangeMax        *int      `json:"age_range_max" validate:"omitempty,min=0,max=120"`
	Occupancy          *int      `json:"occupancy" validate:"omitempty,min=0"`
	Theme              string    `json:"theme" validate:"max=200"`
	MusicGenres        string    `json:"music_genres" validate:"max=500"`
	StartsAt           time.Time `json:"time_frame_start" validate:"required"`
	EndsAt             time.Time `json:"time_frame_end" validate:"required"`
	ProvidedEquipment  string    `json:"provided_equipment" validate:"max=2000"`
	NecessaryEquipment string    `json:"necessary_equipment" validate:"max=2000"`
	AdditionalNotes    string    `json:"additional_notes" validate:"max=2000"`
}

// CreateEvent handles POST /api/v1/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req CreateEventRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	locationPrivate := true
	if req.LocationPrivate != nil {
		locationPrivate = *req.LocationPrivate
	}

	event, err := h.eventService.CreateEvent(r.Context(), caller, services.CreateEventInput{
		Title:              req.Title,
		Location:           req.Location,
		LocationPrivate:    locationPrivate,
		Size:               req.Size,
		Audience:           req.Audience,
		AgeRangeMin:        req.AgeRangeMin,
		AgeRangeMax:        req.AgeRangeMax,
		Occupancy:          req.Occupancy,
		Theme:              req.Theme,
		MusicGenres:        req.MusicGenres,
		StartsAt:           req.StartsAt,
		EndsAt:             req.EndsAt,
		ProvidedEquipment:  req.ProvidedEquipment,
		NecessaryEquipment: req.NecessaryEquipment,
		AdditionalNotes:    req.AdditionalNotes,
	})
	if err != nil {
		respondServiceError(w, r, err, "create event")
		return
	}

	log.Info().
		Str("user_id", caller.UserID).
		Str("event_id", event.ID).
		Msg("Event created")

	respondJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /api/v1/events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	includeCancelled := false
	if v := r.URL.Query().Get("include_cancelled"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, "include_cancelled must be a boolean", http.StatusBadRequest)
			return
		}
		includeCancelled = parsed
	}

	events, err := h.eventService.ListEvents(r.Context(), caller, !includeCancelled)
	if err != nil {
		respondServiceError(w, r, err, "list events")
		return
	}
	if events == nil {
		events = []*models.EventDetail{}
	}
	respondJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /api/v1/events/{event_id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	event, err := h.eventService.GetEvent(r.Context(), caller, chi.URLParam(r, "event_id"))
	if err != nil {
		respondServiceError(w, r, err, "get event")
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// SetStatusRequest represents a terminal status change
type SetStatusRequest struct {
	Status models.EventStatus `json:"status" validate:"required,oneof=completed cancelled"`
}

// SetEventStatus handles PATCH /api/v1/events/{event_id}/status
func (h *EventHandler) SetEventStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	eventID := chi.URLParam(r, "event_id")
	event, err := h.eventService.SetEventStatus(r.Context(), caller, eventID, req.Status)
	if err != nil {
		respondServiceError(w, r, err, "update event status")
		return
	}

	log.Info().
		Str("user_id", caller.UserID).
		Str("event_id", eventID).
		Str("status", string(event.Status)).
		Msg("Event status changed")

	respondJSON(w, http.StatusOK, event)
}

// GetQueue handles GET /api/v1/events/{event_id}/queue
func (h *EventHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := h.eventService.GetQueue(r.Context(), chi.URLParam(r, "event_id"))
	if err != nil {
		respondServiceError(w, r, err, "get queue")
		return
	}
	if queue == nil {
		queue = []*models.QueueEntryView{}
	}
	respondJSON(w, http.StatusOK, queue)
}

// JoinQueue handles POST /api/v1/events/{event_id}/queue
func (h *EventHandler) JoinQueue(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	eventID := chi.URLParam(r, "event_id")
	entry, err := h.eventService.JoinQueue(r.Context(), caller, eventID)
	if err != nil {
		respondServiceError(w, r, err, "join queue")
		return
	}

	log.Info().Str("user_id", caller.UserID).Str("event_id", eventID).Msg("DJ joined queue")
	respondJSON(w, http.StatusCreated, entry)
}

// LeaveQueue handles DELETE /api/v1/events/{event_id}/queue
func (h *EventHandler) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	eventID := chi.URLParam(r, "event_id")
	if err := h.eventService.LeaveQueue(r.Context(), caller, eventID); err != nil {
		respondServiceError(w, r, err, "leave queue")
		return
	}

	log.Info().Str("user_id", caller.UserID).Str("event_id", eventID).Msg("DJ left queue")
	w.WriteHeader(http.StatusNoContent)
}

// Invite handles POST /api/v1/events/{event_id}/invitations/{dj_id}
func (h *EventHandler) Invite(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	eventID := chi.URLParam(r, "event_id")
	djID := chi.URLParam(r, "dj_id")
	event, err := h.eventService.Invite(r.Context(), caller, eventID, djID)
	if err != nil {
		respondServiceError(w, r, err, "send invitation")
		return
	}

	log.Info().
		Str("user_id", caller.UserID).
		Str("event_id", eventID).
		Str("dj_id", djID).
		Msg("Invitation sent")

	respondJSON(w, http.StatusOK, event)
}

// AcceptInvitation handles POST /api/v1/events/{event_id}/invitation/accept
func (h *EventHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "accept invitation", "Invitation accepted", h.eventService.AcceptInvitation)
}

// DeclineInvitation handles POST /api/v1/events/{event_id}/invitation/decline
func (h *EventHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "decline invitation", "Invitation declined", h.eventService.DeclineInvitation)
}

// OptOut handles POST /api/v1/events/{event_id}/opt-out
func (h *EventHandler) OptOut(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "opt out", "Selected DJ opted out", h.eventService.OptOut)
}

type djTransition func(ctx context.Context, caller services.Caller, eventID string) (*models.Event, error)

func (h *EventHandler) transition(w http.ResponseWriter, r *http.Request, action, logMsg string, fn djTransition) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	eventID := chi.URLParam(r, "event_id")
	event, err := fn(r.Context(), caller, eventID)
	if err != nil {
		respondServiceError(w, r, err, action)
		return
	}

	log.Info().Str("user_id", caller.UserID).Str("event_id", eventID).Msg(logMsg)
	respondJSON(w, http.StatusOK, event)
}
