package services

import (
	"context"
	"fmt"
	"time"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Pusher sends one notification to APNs
type Pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// NewAPNsClient creates a token-authenticated APNs client
func NewAPNsClient(keyPath, keyID, teamID string, production bool) (*apns2.Client, error) {
	authKey, err := token.AuthKeyFromFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	})
	if production {
		return client.Production(), nil
	}
	return client.Development(), nil
}

// APNsDeliverer pushes notifications to users that registered a device token
type APNsDeliverer struct {
	pusher Pusher
	topic  string
	store  repository.Store
}

// NewAPNsDeliverer creates a new APNs deliverer
func NewAPNsDeliverer(pusher Pusher, topic string, store repository.Store) *APNsDeliverer {
	return &APNsDeliverer{pusher: pusher, topic: topic, store: store}
}

// Deliver sends n as an alert push. Users without a device token are skipped.
func (d *APNsDeliverer) Deliver(ctx context.Context, n *models.Notification) error {
	var user *models.User
	err := d.store.View(ctx, func(q repository.Querier) error {
		var err error
		user, err = q.GetUser(ctx, n.UserID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to look up push token: %w", err)
	}
	if user.PushToken == nil {
		return nil
	}

	p := payload.NewPayload().
		AlertBody(n.Message).
		Sound("default").
		Custom("notification_id", n.ID).
		Custom("type", string(n.Type))
	if n.EventID != nil {
		p = p.Custom("event_id", *n.EventID)
	}

	resp, err := d.pusher.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: *user.PushToken,
		Topic:       d.topic,
		Payload:     p,
		PushType:    apns2.PushTypeAlert,
		Priority:    apns2.PriorityHigh,
		Expiration:  n.CreatedAt.Add(24 * time.Hour),
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if resp.Sent() {
		return nil
	}

	if resp.Reason == apns2.ReasonBadDeviceToken || resp.Reason == apns2.ReasonUnregistered {
		log.Info().Str("user_id", n.UserID).Str("reason", resp.Reason).Msg("Clearing stale push token")
		if err := d.store.InTx(ctx, func(q repository.Querier) error {
			return q.UpdatePushToken(ctx, n.UserID, nil)
		}); err != nil {
			log.Error().Err(err).Str("user_id", n.UserID).Msg("Failed to clear push token")
		}
	}
	return fmt.Errorf("apns rejected push: %d %s", resp.StatusCode, resp.Reason)
}
