// Package api serves the booking flow to the website over HTTP. Each browser
// session, identified by a cookie, owns its own booking coordinator.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"turfbook/internal/booking"
	"turfbook/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionCookie carries the web session id.
const SessionCookie = "turf_session"

// ReadyCheck is one dependency checked by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Options struct {
	AllowedOrigins []string
	CookieSecure   bool
	// RequestsPerSecond limits each client IP; zero disables limiting.
	RequestsPerSecond int
	Location          *time.Location
	Checks            []ReadyCheck
}

// HTTPServer exposes the booking flow endpoints.
type HTTPServer struct {
	sessions *booking.SessionStore
	opts     Options
	logger   zerolog.Logger
	router   chi.Router
}

func NewHTTPServer(sessions *booking.SessionStore, opts Options, logger zerolog.Logger) *HTTPServer {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	s := &HTTPServer{
		sessions: sessions,
		opts:     opts,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler { return s.router }

func (s *HTTPServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/flow", func(r chi.Router) {
		if s.opts.RequestsPerSecond > 0 {
			r.Use(httprate.LimitByIP(s.opts.RequestsPerSecond, time.Second))
		}
		r.Use(s.withSession)

		r.Get("/state", s.handleState)
		r.Put("/date", s.handleSetDate)
		r.Put("/sport", s.handleSetSport)
		r.Post("/slots/fetch", s.handleFetchSlots)
		r.Post("/selection/{id}", s.handleToggleSlot)
		r.Delete("/selection", s.handleClearSelection)
		r.Post("/bookings", s.handleCreateBooking)
	})
	return r
}

// Run serves on addr until ctx is cancelled.
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", addr).Msg("web API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		l := s.logger.With().Str("request_id", reqID).Logger()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set("X-Request-ID", reqID)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(l.WithContext(r.Context())))

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.IncHTTP(route)
		l.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, c := range s.opts.Checks {
		if err := c.Check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
			http.Error(w, c.Name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
