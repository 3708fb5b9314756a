package handlers

import (
	"net/http"
	"strconv"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// NotificationHandler handles notification HTTP requests
type NotificationHandler struct {
	notificationService *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// ListNotifications handles GET /api/v1/notifications
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	limit := services.MaxNotifications
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil {
			limit = parsedLimit
		}
	}

	notifications, err := h.notificationService.List(r.Context(), caller.UserID, limit)
	if err != nil {
		respondServiceError(w, r, err, "get notifications")
		return
	}
	if notifications == nil {
		notifications = []*models.NotificationView{}
	}
	respondJSON(w, http.StatusOK, notifications)
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	count, err := h.notificationService.UnreadCount(r.Context(), caller.UserID)
	if err != nil {
		respondServiceError(w, r, err, "count notifications")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

// MarkRead handles PATCH /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.notificationService.MarkRead(r.Context(), caller.UserID, id); err != nil {
		respondServiceError(w, r, err, "mark notification read")
		return
	}

	log.Debug().Str("user_id", caller.UserID).Str("notification_id", id).Msg("Notification read")
	w.WriteHeader(http.StatusNoContent)
}
