package api

import (
	"context"
	"net/http"

	"turfbook/internal/booking"

	"github.com/google/uuid"
)

type sessionKey struct{}

// withSession resolves the caller's booking session from the cookie, issuing a new
// one when it is missing or malformed.
func (s *HTTPServer) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.opts.CookieSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(s.sessions.Timeout().Seconds()),
		})

		sess := s.sessions.GetOrCreate(webSessionKey(id))
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func webSessionKey(id string) string { return "web:" + id }

func sessionFrom(r *http.Request) *booking.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*booking.Session)
	return sess
}
