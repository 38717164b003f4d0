package middleware

import (
	"context"
	"net/http"
	"strings"
)

const userIDKey contextKey = "user_id"

// UserIDHeader carries the caller identity. Credentials are verified upstream
// of this service; the header is trusted as-is.
const UserIDHeader = "X-User-ID"

// Identity stores the X-User-ID header on the request context. It does not
// reject anonymous requests; RequireUser does.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser answers 401 when no caller identity is present.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing ` + UserIDHeader + ` header"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserID returns the caller identity, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}
