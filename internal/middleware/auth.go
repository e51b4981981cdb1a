// internal/middleware/auth.go
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const organizerIDKey contextKey = "organizer_id"

// Auth validates a Bearer JWT and injects the organizer id claim into the
// request context. Everything behind it is tenant-scoped by that id.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			rawID, ok := claims["organizer_id"].(float64)
			if !ok || rawID <= 0 {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), organizerIDKey, int64(rawID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OrganizerID returns the authenticated tenant id, or 0 outside an
// authenticated request.
func OrganizerID(ctx context.Context) int64 {
	id, _ := ctx.Value(organizerIDKey).(int64)
	return id
}

// WithOrganizerID is a test helper for building authenticated contexts.
func WithOrganizerID(ctx context.Context, organizerID int64) context.Context {
	return context.WithValue(ctx, organizerIDKey, organizerID)
}
