package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authenticator resolves a request to a user ID.
type Authenticator interface {
	Authenticate(r *http.Request) (userID string, ok bool)
}

// StaticTokens maps bearer tokens to user IDs.
type StaticTokens map[string]string

func (s StaticTokens) Authenticate(r *http.Request) (string, bool) {
	token := bearer(r)
	if token == "" {
		return "", false
	}
	for t, user := range s {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return user, true
		}
	}
	return "", false
}

// bearer extracts the token from the Authorization header. Browsers cannot
// set headers on WebSocket handshakes, so the access_token query parameter is
// accepted as well.
func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get("access_token")
}

type userKey struct{}

// UserFrom returns the authenticated user stored by the auth middleware.
func UserFrom(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.auth.Authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}
