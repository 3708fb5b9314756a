package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"djqueue-backend/internal/models"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/websocket"
	"github.com/sideshow/apns2"
)

type fakePusher struct {
	resp *apns2.Response
	err  error
	sent []*apns2.Notification
}

func (p *fakePusher) PushWithContext(_ apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	p.sent = append(p.sent, n)
	return p.resp, p.err
}

func TestAPNsDeliverer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	dj := env.member(t, "dj1", "Deck One", models.RoleDJ)
	eventID := "e1"
	n := &models.Notification{ID: "n1", UserID: dj.UserID, Type: models.NotificationInvitation, Message: msgInvitation, EventID: &eventID, CreatedAt: testStart}

	pusher := &fakePusher{resp: &apns2.Response{StatusCode: http.StatusOK}}
	d := NewAPNsDeliverer(pusher, "com.example.djqueue", env.store)

	if err := d.Deliver(ctx, n); err != nil {
		t.Fatalf("deliver without token: %v", err)
	}
	if len(pusher.sent) != 0 {
		t.Fatal("pushed to a user without a device token")
	}

	token := "device-1"
	if err := env.users.RegisterPushToken(ctx, dj, &token); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := d.Deliver(ctx, n); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(pusher.sent) != 1 || pusher.sent[0].DeviceToken != token || pusher.sent[0].Topic != "com.example.djqueue" {
		t.Fatalf("sent = %+v", pusher.sent)
	}

	pusher.resp = &apns2.Response{StatusCode: http.StatusBadRequest, Reason: apns2.ReasonBadDeviceToken}
	if err := d.Deliver(ctx, n); err == nil {
		t.Fatal("expected rejected push to fail")
	}
	user, err := env.users.Me(ctx, dj)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if user.PushToken != nil {
		t.Fatal("stale device token not cleared")
	}
}

type fakePresigner struct {
	input *s3.PutObjectInput
	err   error
}

func (p *fakePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.input = in
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	if opts.Expires != avatarURLExpiry {
		return nil, errors.New("unexpected expiry")
	}
	if p.err != nil {
		return nil, p.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *in.Key, Method: http.MethodPut}, nil
}

func TestAvatarUploadURL(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	dj := env.member(t, "dj1", "Deck One", models.RoleDJ)

	presigner := &fakePresigner{}
	svc := NewAvatarService(env.store, presigner, S3Options{Region: "eu-west-1", Bucket: "avatars-bucket", PublicBaseURL: "https://cdn.example/"})

	_, err := svc.UploadURL(ctx, dj, "application/pdf")
	wantKind(t, err, KindInvalidInput)

	upload, err := svc.UploadURL(ctx, dj, "image/png")
	if err != nil {
		t.Fatalf("upload url: %v", err)
	}
	key := *presigner.input.Key
	if !strings.HasPrefix(key, "avatars/dj1/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("key = %q", key)
	}
	if *presigner.input.Bucket != "avatars-bucket" {
		t.Fatalf("bucket = %q", *presigner.input.Bucket)
	}
	if upload.AvatarURL != "https://cdn.example/"+key || upload.ExpiresIn != 300 {
		t.Fatalf("upload = %+v", upload)
	}

	user, err := env.users.Me(ctx, dj)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if user.AvatarURL == nil || *user.AvatarURL != upload.AvatarURL {
		t.Fatalf("avatar url = %v", user.AvatarURL)
	}
}

func TestWSHubDeliversToOnlineUser(t *testing.T) {
	t.Parallel()

	hub := NewWSHub()
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register("u1", conn)
		close(registered)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	<-registered

	if err := hub.Deliver(context.Background(), &models.Notification{ID: "n9", UserID: "offline"}); err != nil {
		t.Fatalf("offline delivery should be a no-op: %v", err)
	}

	n := &models.Notification{ID: "n1", UserID: "u1", Type: models.NotificationMessage, Message: "Hana sent you a message", CreatedAt: testStart}
	if err := hub.Deliver(context.Background(), n); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg WSMessage
	if err := client.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "notification" || msg.Notification == nil || msg.Notification.ID != "n1" {
		t.Fatalf("frame = %+v", msg)
	}
}
