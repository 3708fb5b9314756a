package services

import (
	"context"
	"testing"

	"djqueue-backend/internal/models"
)

func TestMessagingRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj := env.member(t, "dj1", "Deck One", models.RoleDJ)
	event := env.createEvent(t, host)

	if _, err := env.messages.SendMessage(ctx, dj, event.ID, host.UserID, "  what time is load-in?  "); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := env.messages.SendMessage(ctx, dj, event.ID, host.UserID, "and parking?"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got := countType(env.inbox(t, host.UserID), models.NotificationMessage, "Deck One sent you a message"); got != 2 {
		t.Fatalf("message notifications = %d, want 2", got)
	}

	unread, err := env.messages.UnreadCount(ctx, host.UserID)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if unread != 2 {
		t.Fatalf("unread = %d, want 2", unread)
	}

	convs, err := env.messages.ListConversations(ctx, host.UserID)
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	if c := convs[0]; c.OtherUserID != dj.UserID || c.LastMessage != "and parking?" || c.UnreadCount != 2 {
		t.Fatalf("conversation = %+v", c)
	}

	thread, err := env.messages.GetConversation(ctx, host.UserID, event.ID, dj.UserID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(thread) != 2 || thread[0].Content != "what time is load-in?" {
		t.Fatalf("thread = %+v", thread)
	}
	if !thread[0].Read || thread[0].SenderName != "Deck One" {
		t.Fatalf("thread[0] = %+v", thread[0])
	}

	unread, err = env.messages.UnreadCount(ctx, host.UserID)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if unread != 0 {
		t.Fatalf("unread after reading thread = %d, want 0", unread)
	}

	// Reading is idempotent
	if _, err := env.messages.GetConversation(ctx, host.UserID, event.ID, dj.UserID); err != nil {
		t.Fatalf("second read: %v", err)
	}

	if _, err := env.messages.SendMessage(ctx, host, event.ID, dj.UserID, "6pm"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	all, err := env.messages.GetEventMessages(ctx, dj.UserID, event.ID)
	if err != nil {
		t.Fatalf("event messages: %v", err)
	}
	if len(all) != 3 || all[2].Content != "6pm" {
		t.Fatalf("event messages = %+v", all)
	}
}

func TestSendMessageValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	host := env.member(t, "host", "Hana", models.RolePartyThrower)
	dj := env.member(t, "dj1", "Deck One", models.RoleDJ)
	event := env.createEvent(t, host)

	tests := []struct {
		name     string
		eventID  string
		receiver string
		content  string
		want     Kind
	}{
		{"empty content", event.ID, host.UserID, "   ", KindInvalidInput},
		{"self", event.ID, dj.UserID, "hi", KindInvalidInput},
		{"missing event", "nope", host.UserID, "hi", KindNotFound},
		{"missing receiver", event.ID, "ghost", "hi", KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.messages.SendMessage(ctx, dj, tt.eventID, tt.receiver, tt.content)
			wantKind(t, err, tt.want)
		})
	}
}

func TestSenderLabelFallsBack(t *testing.T) {
	t.Parallel()

	if got := senderLabel(" "); got != "Someone" {
		t.Fatalf("senderLabel(blank) = %q", got)
	}
	if got := senderLabel("Hana"); got != "Hana" {
		t.Fatalf("senderLabel(Hana) = %q", got)
	}
}
