package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"djqueue-backend/internal/middleware"
	"djqueue-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsReadTimeout = 90 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients send no Origin
	},
}

// WebSocketHandler streams live notifications to connected users
type WebSocketHandler struct {
	hub                 *services.WSHub
	verifier            middleware.TokenVerifier
	resolver            middleware.CallerResolver
	notificationService *services.NotificationService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	verifier middleware.TokenVerifier,
	resolver middleware.CallerResolver,
	notificationService *services.NotificationService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:                 hub,
		verifier:            verifier,
		resolver:            resolver,
		notificationService: notificationService,
	}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.ValidateWebSocketToken(r.Context(), r.URL.Query().Get("token"), h.verifier, h.resolver)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}
	userID := caller.UserID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	// The request context is not tied to the hijacked connection
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.sendUnreadCount(ctx, userID, "connected")

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			h.sendError(userID, "Invalid message format")
			continue
		}

		switch msg.Type {
		case "ping":
			h.send(userID, services.WSMessage{Type: "pong", Timestamp: time.Now().UnixMilli()})
		case "unread_count":
			h.sendUnreadCount(ctx, userID, "unread_count")
		default:
			h.sendError(userID, "Unknown message type")
		}
	}
}

func (h *WebSocketHandler) sendUnreadCount(ctx context.Context, userID, typ string) {
	count, err := h.notificationService.UnreadCount(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to count notifications")
		h.sendError(userID, "Failed to count notifications")
		return
	}
	h.send(userID, services.WSMessage{Type: typ, Timestamp: time.Now().UnixMilli(), UnreadCount: &count})
}

// sendError sends an error frame to the user
func (h *WebSocketHandler) sendError(userID, message string) {
	h.send(userID, services.WSMessage{Type: "error", Message: message})
}

func (h *WebSocketHandler) send(userID string, msg services.WSMessage) {
	if err := h.hub.SendToUser(userID, msg); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Str("type", msg.Type).Msg("Failed to send WebSocket message")
	}
}
