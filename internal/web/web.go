package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"festcal/internal/config"
	appLog "festcal/internal/log"
	"festcal/internal/model"
	"festcal/internal/refresh"
	"festcal/internal/schedule"
)

const maxBodyBytes = 1 << 20

// Server provides the layout/visibility APIs and the rendered calendar
// page over one festival catalog.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux
	loc *time.Location

	catalog *schedule.Catalog
	// reps are the catalog's representations over the festival window,
	// expanded once at startup.
	reps      []model.Interval
	repByID   map[string]model.Interval
	truncated []string

	festivalStart time.Time
	festivalEnd   time.Time

	blockers *refresh.BlockerStore
	limiter  *clientLimiter
	proxies  proxySet
}

// NewServer expands the catalog over the configured festival and wires the
// routes. blockers may be shared with a running refresh.Refresher.
func NewServer(cfg *config.Config, catalog *schedule.Catalog, blockers *refresh.BlockerStore) (*Server, error) {
	if cfg == nil || catalog == nil {
		return nil, errors.New("web: config and catalog are required")
	}
	if blockers == nil {
		blockers = refresh.NewBlockerStore()
	}
	start, end, err := cfg.FestivalRange()
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()
	proxies, err := parseProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}

	res, err := schedule.Expand(catalog.Plays, schedule.ExpandConfig{
		RangeStart:            start,
		RangeEnd:              end,
		Location:              loc,
		MaxOccurrencesPerPlay: cfg.MaxOccurrences,
	})
	if err != nil {
		return nil, fmt.Errorf("web: expand catalog: %w", err)
	}

	s := &Server{
		cfg:           cfg,
		mux:           http.NewServeMux(),
		loc:           loc,
		catalog:       catalog,
		reps:          res.Representations,
		repByID:       make(map[string]model.Interval, len(res.Representations)),
		truncated:     res.Truncated,
		festivalStart: start,
		festivalEnd:   end,
		blockers:      blockers,
		limiter:       newClientLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
		proxies:       proxies,
	}
	for _, r := range s.reps {
		s.repByID[r.ID] = r
	}
	s.registerRoutes()

	appLog.Info("web server ready",
		"plays", len(catalog.Plays),
		"representations", len(s.reps),
		"festival_start", start.Format(dateLayout),
		"festival_end", end.Format(dateLayout),
	)
	return s, nil
}

// Handler returns the routes wrapped in rate limiting and, when
// configured, basic auth.
func (s *Server) Handler() http.Handler {
	h := s.rateLimitMiddleware(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave the API open.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
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
			w.Header().Set("WWW-Authenticate", `Basic realm="festcal", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	s.mux.HandleFunc("/api/layout", s.handleLayout)
	s.mux.HandleFunc("/api/visibility", s.handleVisibility)
	s.mux.HandleFunc("/api/selection/toggle", s.handleToggle)
	s.mux.HandleFunc("/api/plays", s.handlePlays)
	s.mux.HandleFunc("/api/representations", s.handleRepresentations)
	s.mux.HandleFunc("/api/blockers", s.handleBlockers)
	s.mux.HandleFunc("/api/calendar", s.handleCalendar)
	s.mux.HandleFunc("/api/chosen.ics", s.handleChosenICS)

	s.mux.HandleFunc("/calendar", s.handleCalendarPage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// allowMethod writes 405 and returns false when r does not use method.
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
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
