package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

// Middleware handles JWT validation for incoming HTTP calls and injects
// the caller's identity into the request context. Register/Login are
// mounted outside of it.
func Middleware(tokens *TokenManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "authorization token is missing", http.StatusUnauthorized)
			return
		}

		// Expecting the standard "Bearer <token>" format
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims, err := tokens.ValidateToken(tokenStr)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, RolesKey, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID extracts the authenticated caller from the request context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}
