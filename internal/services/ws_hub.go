package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"djqueue-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type         string               `json:"type"`
	Timestamp    int64                `json:"timestamp,omitempty"`
	Message      string               `json:"message,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
	UnreadCount  *int                 `json:"unread_count,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections and pushes notifications to online users
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a new WebSocket connection for a user, replacing any
// previous one
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.connections[userID]; exists {
		existing.conn.Close()
	}

	h.connections[userID] = &wsClient{conn: conn}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes the user's connection if it is still conn
func (h *WSHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, exists := h.connections[userID]; exists && c.conn == conn {
		c.conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(userID, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// Deliver pushes n to its user when connected. Offline users pick it up by
// polling, so they are not an error.
func (h *WSHub) Deliver(_ context.Context, n *models.Notification) error {
	if !h.IsOnline(n.UserID) {
		return nil
	}
	return h.SendToUser(n.UserID, WSMessage{
		Type:         "notification",
		Timestamp:    n.CreatedAt.UnixMilli(),
		Notification: n,
	})
}
