package schedule

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"festcal/internal/model"
)

func festivalConfig() ExpandConfig {
	start, end := DefaultFestival(time.UTC)
	return ExpandConfig{RangeStart: start, RangeEnd: end, Location: time.UTC}
}

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := LoadCatalog(filepath.Join("testdata", "plays.yaml"))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cat
}

func countByPlay(ivs []model.Interval) map[string]int {
	m := make(map[string]int)
	for _, iv := range ivs {
		m[iv.GroupID]++
	}
	return m
}

func TestExpandPatternCounts(t *testing.T) {
	cat := loadTestCatalog(t)
	res, err := Expand(cat.Plays, festivalConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// July 2026 starts on a Wednesday and has four Mondays, five Fridays
	// and four Saturdays.
	want := map[string]int{
		"play-hamlet": 31,
		"play-medea":  27,
		"play-phedre": 15,
		"play-ubu":    9,
	}
	got := countByPlay(res.Representations)
	for id, n := range want {
		if got[id] != n {
			t.Fatalf("%s: expected %d representations, got %d", id, n, got[id])
		}
	}
	if len(res.Truncated) != 0 {
		t.Fatalf("unexpected truncation: %v", res.Truncated)
	}
}

func TestExpandIDsAndOrdering(t *testing.T) {
	cat := loadTestCatalog(t)
	res, err := Expand(cat.Plays, festivalConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reps := res.Representations

	wantFirst := []string{"rep-0001", "rep-0032", "rep-0059"}
	for i, id := range wantFirst {
		if reps[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, reps[i].ID)
		}
	}

	seen := make(map[string]bool, len(reps))
	for i, r := range reps {
		if seen[r.ID] {
			t.Fatalf("duplicate id %s", r.ID)
		}
		seen[r.ID] = true
		if i > 0 && r.Start.Before(reps[i-1].Start) {
			t.Fatalf("not sorted at %d", i)
		}
		if r.Kind != model.KindCandidate {
			t.Fatalf("%s: expected candidate kind", r.ID)
		}
	}
}

func TestExpandTimesAndPatterns(t *testing.T) {
	cat := loadTestCatalog(t)
	res, err := Expand(cat.Plays, festivalConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range res.Representations {
		p, ok := cat.Play(r.GroupID)
		if !ok {
			t.Fatalf("unknown play %s", r.GroupID)
		}
		if r.Start.Hour() != p.StartTime.Hour || r.Start.Minute() != p.StartTime.Minute {
			t.Fatalf("%s: start %s does not match %s", r.ID, r.Start, p.StartTime)
		}
		if r.Duration() != time.Duration(p.DurationMinutes)*time.Minute {
			t.Fatalf("%s: wrong duration %s", r.ID, r.Duration())
		}
		wd := int(r.Start.Weekday())
		switch p.Schedule.Type {
		case model.PatternDailyExcept:
			if wd == p.Schedule.ExceptDay {
				t.Fatalf("%s: scheduled on excluded weekday", r.ID)
			}
		case model.PatternSpecificDays:
			if wd != 5 && wd != 6 {
				t.Fatalf("%s: scheduled on weekday %d", r.ID, wd)
			}
		case model.PatternEveryOtherDay:
			if (r.Start.Day()-1)%2 != p.Schedule.StartOffset {
				t.Fatalf("%s: wrong parity on day %d", r.ID, r.Start.Day())
			}
		}
	}
}

func TestExpandCap(t *testing.T) {
	plays := []model.Play{{
		ID: "p", Title: "P", DurationMinutes: 60,
		StartTime: model.ClockTime{Hour: 10},
		Schedule:  model.SchedulePattern{Type: model.PatternDaily},
	}}
	cfg := festivalConfig()
	cfg.MaxOccurrencesPerPlay = 3
	res, err := Expand(plays, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Representations) != 3 {
		t.Fatalf("expected 3 representations, got %d", len(res.Representations))
	}
	if len(res.Truncated) != 1 || res.Truncated[0] != "p" {
		t.Fatalf("expected p truncated, got %v", res.Truncated)
	}
}

func TestExpandRejectsInvalid(t *testing.T) {
	plays := []model.Play{{
		ID: "bad", DurationMinutes: 0,
		Schedule: model.SchedulePattern{Type: model.PatternDaily},
	}}
	if _, err := Expand(plays, festivalConfig()); !errors.Is(err, model.ErrInvalidPlay) {
		t.Fatalf("expected ErrInvalidPlay, got %v", err)
	}

	cfg := festivalConfig()
	cfg.RangeStart, cfg.RangeEnd = cfg.RangeEnd, cfg.RangeStart
	if _, err := Expand(nil, cfg); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestExpandEmptySpecificDays(t *testing.T) {
	plays := []model.Play{{
		ID: "never", Title: "Never", DurationMinutes: 30,
		Schedule: model.SchedulePattern{Type: model.PatternSpecificDays},
	}}
	res, err := Expand(plays, festivalConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Representations) != 0 {
		t.Fatalf("expected none, got %d", len(res.Representations))
	}
}

func TestParseCatalogJSONAndDuplicates(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join("testdata", "plays.json"))
	if err != nil {
		t.Fatalf("load json catalog: %v", err)
	}
	if len(cat.Plays) != 1 || cat.Plays[0].StartTime.Hour != 16 {
		t.Fatalf("unexpected catalog: %+v", cat.Plays)
	}

	_, err = ParseCatalog([]byte(`
plays:
  - {id: a, title: A, duration: 30, startTime: {hour: 9, minute: 0}, schedule: {type: daily}}
  - {id: a, title: A, duration: 30, startTime: {hour: 9, minute: 0}, schedule: {type: daily}}
`))
	if !errors.Is(err, ErrDuplicatePlay) {
		t.Fatalf("expected ErrDuplicatePlay, got %v", err)
	}
}
