package handlers

import (
	"net/http"

	"djqueue-backend/internal/config"
	"djqueue-backend/internal/middleware"
	"djqueue-backend/internal/models"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// RouterDeps carries everything the router mounts
type RouterDeps struct {
	Verifier      middleware.TokenVerifier
	Resolver      middleware.CallerResolver
	RateLimit     config.RateLimitConfig
	Limiter       redis.Scripter
	Users         *UserHandler
	Events        *EventHandler
	Messages      *MessageHandler
	Ratings       *RatingHandler
	Notifications *NotificationHandler
	WebSocket     *WebSocketHandler
}

// NewRouter builds the HTTP routes
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(d.Verifier, d.Resolver))
		r.Use(middleware.RateLimit(d.RateLimit, d.Limiter))

		dj := middleware.RequireRole(models.RoleDJ)
		thrower := middleware.RequireRole(models.RolePartyThrower)

		r.Get("/me", d.Users.Me)
		r.Put("/me/push-token", d.Users.RegisterPushToken)

		r.Route("/profiles", func(r chi.Router) {
			r.Post("/complete", d.Users.CompleteProfile)
			r.Post("/avatar", d.Users.UploadAvatar)
			r.Get("/dj/{user_id}", d.Users.GetDJProfile)
			r.With(dj).Patch("/dj", d.Users.UpdateDJProfile)
			r.Get("/party-thrower/{user_id}", d.Users.GetPartyThrowerProfile)
			r.With(thrower).Patch("/party-thrower", d.Users.UpdatePartyThrowerProfile)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", d.Events.ListEvents)
			r.With(thrower).Post("/", d.Events.CreateEvent)

			r.Route("/{event_id}", func(r chi.Router) {
				r.Get("/", d.Events.GetEvent)
				r.With(thrower).Patch("/status", d.Events.SetEventStatus)

				r.Get("/queue", d.Events.GetQueue)
				r.With(dj).Post("/queue", d.Events.JoinQueue)
				r.With(dj).Delete("/queue", d.Events.LeaveQueue)

				r.With(thrower).Post("/invitations/{dj_id}", d.Events.Invite)
				r.With(dj).Post("/invitation/accept", d.Events.AcceptInvitation)
				r.With(dj).Post("/invitation/decline", d.Events.DeclineInvitation)
				r.With(dj).Post("/opt-out", d.Events.OptOut)
			})
		})

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", d.Messages.SendMessage)
			r.Get("/conversations", d.Messages.ListConversations)
			r.Get("/unread-count", d.Messages.UnreadCount)
			r.Get("/events/{event_id}", d.Messages.GetEventMessages)
			r.Get("/events/{event_id}/users/{user_id}", d.Messages.GetConversation)
		})

		r.Route("/ratings", func(r chi.Router) {
			r.Post("/", d.Ratings.SubmitRating)
			r.Get("/users/{user_id}", d.Ratings.ListRatings)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", d.Notifications.ListNotifications)
			r.Get("/unread-count", d.Notifications.UnreadCount)
			r.Patch("/{id}/read", d.Notifications.MarkRead)
		})
	})

	if d.WebSocket != nil {
		r.Get("/ws", d.WebSocket.HandleWebSocket)
	}

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
