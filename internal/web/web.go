package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"classcal/internal/config"
	appLog "classcal/internal/log"
	"classcal/internal/metrics"
	"classcal/internal/schedule"
	"classcal/internal/state"
)

// Server provides the JSON API over the schedule state.
type Server struct {
	// cfgMu guards cfg; the feed URL changes at runtime.
	cfgMu      sync.RWMutex
	cfg        *config.Config
	configPath string

	store  *state.Store
	loader *state.Loader

	loc       *time.Location
	weekStart time.Weekday
	policy    schedule.Policy
	window    schedule.Window

	now func() time.Time
}

// NewServer validates the layout settings of cfg and builds a Server.
// configPath is where PUT /api/feed persists the new URL; empty disables
// saving.
func NewServer(cfg *config.Config, configPath string, store *state.Store, loader *state.Loader) (*Server, error) {
	policy, err := schedule.ParsePolicy(cfg.Layout.Grouping)
	if err != nil {
		return nil, err
	}
	window, err := schedule.ParseWindow(cfg.Layout.DayStart, cfg.Layout.DayEnd)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:        cfg,
		configPath: configPath,
		store:      store,
		loader:     loader,
		loc:        cfg.Location(),
		weekStart:  cfg.FirstWeekday(),
		policy:     policy,
		window:     window,
		now:        time.Now,
	}, nil
}

// FeedURL returns the currently configured feed URL.
func (s *Server) FeedURL() string {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.FeedURL
}

// Refresh reloads the configured feed. It is shared by the API and the
// refresh scheduler.
func (s *Server) Refresh(ctx context.Context) error {
	_, err := s.loader.LoadURL(ctx, s.FeedURL())
	return err
}

// Handler returns the router with all middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	if s.cfg.BasicAuth.Enabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	if s.cfg.Metrics {
		r.Get("/metrics", metrics.Handler().ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/day", s.handleDay)
		r.Get("/calendar", s.handleCalendar)
		r.Get("/courses", s.handleCourses)
		r.Put("/selection", s.handleSetSelection)
		r.Post("/selection/all", s.handleSelectAll)
		r.Post("/selection/none", s.handleSelectNone)
		r.Post("/refresh", s.handleRefresh)
		r.Put("/feed", s.handleSetFeed)
		r.Post("/import", s.handleImport)
		r.Get("/export.ics", s.handleExport)
	})

	return r
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="classcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start).String(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// loadErrorStatus maps a feed load error onto an HTTP status.
func loadErrorStatus(err error) int {
	switch {
	case errors.Is(err, state.ErrNoFeedURL):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrStaleLoad):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
