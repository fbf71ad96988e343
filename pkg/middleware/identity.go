package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKeyType string

const usernameKey contextKeyType = "username"

// UserHeader is the header that carries the caller identity. Requests arrive
// pre-authenticated from the edge proxy, which strips any client-supplied
// value and sets its own.
const UserHeader = "X-User-Name"

// Identity extracts the caller identity from the X-User-Name header and
// injects it into the request context. It does not reject requests without
// the header; use RequireUser on routes that need an identity.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username := r.Header.Get(UserHeader); username != "" {
				ctx := context.WithValue(r.Context(), usernameKey, username)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests that carry no identity with 400.
func RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UsernameFromContext(r.Context()) == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"code":    "INVALID_INPUT",
						"message": "missing X-User-Name header",
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UsernameFromContext extracts the caller identity from the request context.
func UsernameFromContext(ctx context.Context) string {
	if username, ok := ctx.Value(usernameKey).(string); ok {
		return username
	}
	return ""
}
