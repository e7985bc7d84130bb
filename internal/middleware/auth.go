package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/notesapp/notes-api/internal/crypto"
)

type contextKey string

const userIDKey contextKey = "userID"

const authFailed = "Authentication failed"

// JWTAuth returns middleware that validates a Bearer token from the Authorization header.
// Every rejection gets the same 401 body; the cause is only logged.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reject := func(reason string) {
				slog.InfoContext(r.Context(), "authentication failed",
					"reason", reason,
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusUnauthorized, authFailed)
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				reject("missing authorization header")
				return
			}

			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				reject("invalid authorization format")
				return
			}

			claims, err := crypto.ValidateToken(strings.TrimSpace(token), secret)
			switch {
			case errors.Is(err, crypto.ErrMissingSecret):
				slog.ErrorContext(r.Context(), "jwt secret is not configured")
				writeJSONError(w, http.StatusInternalServerError, "Server configuration error")
				return
			case errors.Is(err, crypto.ErrTokenExpired):
				reject("token expired")
				return
			case err != nil:
				reject("invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithUserID returns a copy of ctx carrying userID, as JWTAuth does.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
