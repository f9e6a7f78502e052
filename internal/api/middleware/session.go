package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/clipbatch/internal/domain"
)

// SessionCookie is the name of the cookie carrying the session id.
const SessionCookie = "clipbatch_session"

type sessionKey struct{}

// Session assigns every request a session. A request without a valid
// session cookie gets a fresh id; the cookie is re-issued on every
// response so its ttl restarts with each request.
func Session(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(SessionCookie); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.New().String()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				Expires:  time.Now().Add(ttl),
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := WithSession(r.Context(), domain.SessionID(id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSession returns a copy of ctx carrying the session id.
func WithSession(ctx context.Context, id domain.SessionID) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionFromContext returns the session id stored by Session.
func SessionFromContext(ctx context.Context) (domain.SessionID, bool) {
	id, ok := ctx.Value(sessionKey{}).(domain.SessionID)
	return id, ok && id != ""
}
