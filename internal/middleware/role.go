package middleware

import (
	"net/http"

	"djqueue-backend/internal/models"
)

// RequireRole rejects callers whose role is not one of roles
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := GetCaller(r.Context())
			if !ok {
				respondError(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if caller.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, "This action requires role "+joinRoles(roles), http.StatusForbidden)
		})
	}
}

func joinRoles(roles []models.Role) string {
	s := ""
	for i, r := range roles {
		if i > 0 {
			s += " or "
		}
		s += string(r)
	}
	return s
}
