package handlers

import (
	"net/http"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MessageHandler handles messaging HTTP requests
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	EventID    string `json:"event_id" validate:"required"`
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required,max=4000"`
}

// SendMessage handles POST /api/v1/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.messageService.SendMessage(r.Context(), caller, req.EventID, req.ReceiverID, req.Content)
	if err != nil {
		respondServiceError(w, r, err, "send message")
		return
	}

	log.Info().
		Str("user_id", caller.UserID).
		Str("event_id", req.EventID).
		Str("receiver_id", req.ReceiverID).
		Msg("Message sent")

	respondJSON(w, http.StatusCreated, msg)
}

// ListConversations handles GET /api/v1/messages/conversations
func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	conversations, err := h.messageService.ListConversations(r.Context(), caller.UserID)
	if err != nil {
		respondServiceError(w, r, err, "list conversations")
		return
	}
	if conversations == nil {
		conversations = []*models.Conversation{}
	}
	respondJSON(w, http.StatusOK, conversations)
}

// GetConversation handles GET /api/v1/messages/events/{event_id}/users/{user_id}.
// Messages addressed to the caller are marked read.
func (h *MessageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	messages, err := h.messageService.GetConversation(r.Context(), caller.UserID, chi.URLParam(r, "event_id"), chi.URLParam(r, "user_id"))
	if err != nil {
		respondServiceError(w, r, err, "get conversation")
		return
	}
	if messages == nil {
		messages = []*models.MessageView{}
	}
	respondJSON(w, http.StatusOK, messages)
}

// GetEventMessages handles GET /api/v1/messages/events/{event_id}
func (h *MessageHandler) GetEventMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	messages, err := h.messageService.GetEventMessages(r.Context(), caller.UserID, chi.URLParam(r, "event_id"))
	if err != nil {
		respondServiceError(w, r, err, "get event messages")
		return
	}
	if messages == nil {
		messages = []*models.MessageView{}
	}
	respondJSON(w, http.StatusOK, messages)
}

// UnreadCount handles GET /api/v1/messages/unread-count
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	count, err := h.messageService.UnreadCount(r.Context(), caller.UserID)
	if err != nil {
		respondServiceError(w, r, err, "count unread messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}
