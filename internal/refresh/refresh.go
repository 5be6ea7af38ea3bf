// Package refresh keeps the blocker list in sync with the configured ICS
// calendars, on startup and then on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"festcal/internal/config"
	"festcal/internal/ics"
	appLog "festcal/internal/log"
	"festcal/internal/model"
)

// Snapshot is an immutable copy of the last successful refresh.
type Snapshot struct {
	Blockers  []model.Interval
	Truncated []string
	UpdatedAt time.Time
}

// BlockerStore holds the current blockers. Readers get copies, so the web
// server never sees a half-written list.
type BlockerStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewBlockerStore() *BlockerStore {
	return &BlockerStore{}
}

// Set replaces the stored blockers.
func (s *BlockerStore) Set(blockers []model.Interval, truncated []string, at time.Time) {
	snap := Snapshot{
		Blockers:  append([]model.Interval(nil), blockers...),
		Truncated: append([]string(nil), truncated...),
		UpdatedAt: at,
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Snapshot returns a copy of the current blockers.
func (s *BlockerStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Blockers:  append([]model.Interval(nil), s.snap.Blockers...),
		Truncated: append([]string(nil), s.snap.Truncated...),
		UpdatedAt: s.snap.UpdatedAt,
	}
}

// Sources builds fetch sources from config, skipping entries without a URL.
// A missing ID falls back to the name, then the URL.
func Sources(cfg *config.Config) []ics.Source {
	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, csrc := range cfg.ICS {
		if csrc.URL == "" {
			continue
		}
		id := csrc.ID
		if id == "" {
			if csrc.Name != "" {
				id = csrc.Name
			} else {
				id = csrc.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, URL: csrc.URL})
	}
	return sources
}

// Refresher fetches, parses and expands every source into the store.
type Refresher struct {
	fetcher *ics.Fetcher
	sources []ics.Source
	expand  ics.ExpandConfig
	spec    string
	store   *BlockerStore

	// runMu serializes runs so a slow feed cannot overlap the next tick.
	runMu sync.Mutex
}

// New creates a Refresher for the festival window of cfg.
func New(cfg *config.Config, store *BlockerStore) (*Refresher, error) {
	start, end, err := cfg.FestivalRange()
	if err != nil {
		return nil, err
	}
	return &Refresher{
		fetcher: ics.NewFetcher(cfg.CacheDir),
		sources: Sources(cfg),
		expand: ics.ExpandConfig{
			DisplayLocation:        cfg.Location(),
			RangeStart:             start,
			RangeEnd:               end.AddDate(0, 0, 1).Add(-time.Second),
			MaxOccurrencesPerEvent: cfg.MaxOccurrences,
		},
		spec:  cfg.RefreshCron,
		store: store,
	}, nil
}

// WithFetcher replaces the fetcher; tests point it at httptest servers.
func (r *Refresher) WithFetcher(f *ics.Fetcher) *Refresher {
	r.fetcher = f
	return r
}

// RunOnce performs a single refresh. When every source fails the previous
// snapshot is kept and an error is returned; partial failures are logged.
func (r *Refresher) RunOnce(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if len(r.sources) == 0 {
		r.store.Set(nil, nil, time.Now())
		appLog.Debug("refresh: no ICS sources configured")
		return nil
	}

	results, errs := r.fetcher.FetchAll(ctx, r.sources)
	if len(results) == 0 && len(errs) > 0 {
		return fmt.Errorf("refresh: all ICS fetches failed: %w", errors.Join(errs...))
	}
	if len(errs) > 0 {
		appLog.Error("refresh: one or more ICS fetches failed", errors.Join(errs...), "error_count", len(errs))
	}

	parsed := make([]ics.ParsedEvent, 0)
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("refresh: parse failed for source", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	expanded, err := ics.ExpandBlockers(parsed, r.expand)
	if err != nil {
		return fmt.Errorf("refresh: expand: %w", err)
	}

	r.store.Set(expanded.Blockers, expanded.TruncatedEvents, time.Now())
	appLog.Info("refresh completed",
		"sources", len(r.sources),
		"blockers", len(expanded.Blockers),
		"truncated", len(expanded.TruncatedEvents),
	)
	return nil
}

// Start schedules RunOnce on the configured cron spec. The scheduler stops
// when ctx is cancelled; the returned cron is already running.
func (r *Refresher) Start(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(r.spec, func() {
		if err := r.RunOnce(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("refresh: invalid cron spec %q: %w", r.spec, err)
	}
	c.Start()
	appLog.Info("refresh scheduler started", "cron", r.spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return c, nil
}
