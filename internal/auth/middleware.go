package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/wsio/wsio/internal/store"
)

type contextKey struct{}

// UserFromContext returns the authenticated user, or nil when the
// request was anonymous.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(contextKey{}).(*store.User)
	return u
}

// WithUser stores an authenticated user on the context. Exposed for
// handler tests.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// Middleware authenticates requests carrying either a bearer session
// token or an api key and attaches the user to the request context.
// Requests with no credentials pass through anonymous; handlers decide
// whether that is acceptable.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if header := r.Header.Get("Authorization"); header != "" {
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				http.Error(w, "unsupported authorization scheme", http.StatusUnauthorized)
				return
			}
			u, err := s.VerifyToken(ctx, token)
			if err != nil {
				http.Error(w, "invalid session token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(ctx, u)))
			return
		}

		if header := r.Header.Get("X-Api-Key"); header != "" {
			keyID, secret, ok := strings.Cut(header, ":")
			if !ok {
				http.Error(w, "malformed api key", http.StatusUnauthorized)
				return
			}
			u, err := s.VerifyAPIKey(ctx, keyID, secret)
			if err != nil {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(ctx, u)))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
