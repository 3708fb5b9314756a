package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"djqueue-backend/internal/services"

	"github.com/rs/zerolog/log"
)

type contextKey string

const callerKey contextKey = "caller"

// TokenVerifier validates a bearer token
type TokenVerifier interface {
	Verify(token string) (services.Identity, error)
}

// CallerResolver maps a verified identity to a caller
type CallerResolver interface {
	Resolve(ctx context.Context, id services.Identity) (services.Caller, error)
}

// AuthMiddleware authenticates the bearer token and stores the caller in the
// request context
func AuthMiddleware(verifier TokenVerifier, resolver CallerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			caller, err := authenticate(r.Context(), parts[1], verifier, resolver)
			if err != nil {
				log.Debug().Err(err).Msg("Authentication failed")
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func authenticate(ctx context.Context, token string, verifier TokenVerifier, resolver CallerResolver) (services.Caller, error) {
	id, err := verifier.Verify(token)
	if err != nil {
		return services.Caller{}, err
	}
	return resolver.Resolve(ctx, id)
}

// WithCaller returns a copy of ctx carrying caller
func WithCaller(ctx context.Context, caller services.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// GetCaller extracts the caller from context
func GetCaller(ctx context.Context) (services.Caller, bool) {
	caller, ok := ctx.Value(callerKey).(services.Caller)
	return caller, ok
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	caller, _ := GetCaller(ctx)
	return caller.UserID
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ValidateWebSocketToken validates the token passed as a WebSocket query parameter
func ValidateWebSocketToken(ctx context.Context, token string, verifier TokenVerifier, resolver CallerResolver) (services.Caller, error) {
	if token == "" {
		return services.Caller{}, fmt.Errorf("token required")
	}
	return authenticate(ctx, token, verifier, resolver)
}
