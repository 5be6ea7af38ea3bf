package ics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"festcal/internal/model"
)

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:dentist-1
SUMMARY:Dentist
DTSTART:20260702T100000Z
DTEND:20260702T120000Z
END:VEVENT
BEGIN:VEVENT
UID:standup
SUMMARY:Standup
DTSTART:20260703T080000Z
DTEND:20260703T090000Z
RRULE:FREQ=DAILY;COUNT=3
EXDATE:20260704T080000Z
END:VEVENT
BEGIN:VEVENT
UID:standup
SUMMARY:Standup (moved)
RECURRENCE-ID:20260705T080000Z
DTSTART:20260705T130000Z
DTEND:20260705T140000Z
END:VEVENT
BEGIN:VEVENT
SUMMARY:No uid
DTSTART:20260710T180000Z
DTEND:20260710T190000Z
END:VEVENT
BEGIN:VEVENT
UID:reminder
SUMMARY:Reminder
DTSTART:20260711T090000Z
END:VEVENT
END:VCALENDAR
`

func festivalRange() ExpandConfig {
	return ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2026, time.July, 31, 23, 59, 59, 0, time.UTC),
	}
}

func TestParseICS(t *testing.T) {
	events, err := ParseICS(Source{ID: "work"}, []byte(sampleICS))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}

	var overrides, generated int
	for _, ev := range events {
		if ev.IsOverride {
			overrides++
			if ev.Recurrence == nil || !ev.Recurrence.Equal(time.Date(2026, time.July, 5, 8, 0, 0, 0, time.UTC)) {
				t.Fatalf("unexpected recurrence id %v", ev.Recurrence)
			}
		}
		if ev.Summary == "No uid" {
			generated++
			if ev.UID == "" {
				t.Fatalf("expected a generated UID")
			}
		}
		if ev.UID == "standup" && !ev.IsOverride {
			if ev.RawRRule != "FREQ=DAILY;COUNT=3" || len(ev.ExDates) != 1 {
				t.Fatalf("unexpected recurrence data: %+v", ev)
			}
		}
	}
	if overrides != 1 || generated != 1 {
		t.Fatalf("overrides=%d generated=%d", overrides, generated)
	}
}

func TestParseICSEmpty(t *testing.T) {
	if _, err := ParseICS(Source{ID: "x"}, nil); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestExpandBlockers(t *testing.T) {
	events, err := ParseICS(Source{ID: "work"}, []byte(sampleICS))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := ExpandBlockers(events, festivalRange())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := make([]string, 0, len(res.Blockers))
	for _, b := range res.Blockers {
		if b.Kind != model.KindBlocker {
			t.Fatalf("expected blocker kind, got %q", b.Kind)
		}
		got = append(got, b.Title+"@"+b.Start.Format("01-02T15:04"))
	}
	want := []string{
		"Dentist@07-02T10:00",
		"Standup@07-03T08:00",
		"Standup (moved)@07-05T13:00",
		"No uid@07-10T18:00",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected blockers:\n got %v\nwant %v", got, want)
	}
	if res.Blockers[0].ID != "work:dentist-1:2026-07-02T10:00:00Z" {
		t.Fatalf("unexpected id %q", res.Blockers[0].ID)
	}
}

const homeICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:standup
SUMMARY:Kids standup (moved)
RECURRENCE-ID:20260703T080000Z
DTSTART:20260703T200000Z
DTEND:20260703T210000Z
END:VEVENT
BEGIN:VEVENT
UID:dentist-1
SUMMARY:Dentist (kids)
DTSTART:20260720T100000Z
DTEND:20260720T110000Z
END:VEVENT
END:VCALENDAR
`

func TestExpandBlockersKeepsSourcesApart(t *testing.T) {
	work, err := ParseICS(Source{ID: "work"}, []byte(sampleICS))
	if err != nil {
		t.Fatalf("parse work: %v", err)
	}
	home, err := ParseICS(Source{ID: "home"}, []byte(homeICS))
	if err != nil {
		t.Fatalf("parse home: %v", err)
	}
	res, err := ExpandBlockers(append(work, home...), festivalRange())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := make([]string, 0, len(res.Blockers))
	for _, b := range res.Blockers {
		got = append(got, b.Title+"@"+b.Start.Format("01-02T15:04"))
	}
	want := []string{
		"Dentist@07-02T10:00",
		"Standup@07-03T08:00",
		"Standup (moved)@07-05T13:00",
		"No uid@07-10T18:00",
		"Dentist (kids)@07-20T10:00",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected blockers:\n got %v\nwant %v", got, want)
	}
	if res.Blockers[4].ID != "home:dentist-1:2026-07-20T10:00:00Z" {
		t.Fatalf("unexpected id %q", res.Blockers[4].ID)
	}
}

func TestExpandBlockersOutsideRange(t *testing.T) {
	events, err := ParseICS(Source{ID: "work"}, []byte(sampleICS))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := festivalRange()
	cfg.RangeStart = time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	cfg.RangeEnd = time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	res, err := ExpandBlockers(events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Blockers) != 0 {
		t.Fatalf("expected no blockers, got %d", len(res.Blockers))
	}
}

func TestExpandBlockersCap(t *testing.T) {
	start := time.Date(2026, time.July, 1, 7, 0, 0, 0, time.UTC)
	events := []ParsedEvent{{
		Source:   Source{ID: "gym"},
		UID:      "gym",
		Summary:  "Gym",
		Start:    start,
		End:      start.Add(time.Hour),
		RawRRule: "FREQ=DAILY",
	}}
	cfg := festivalRange()
	cfg.MaxOccurrencesPerEvent = 5
	res, err := ExpandBlockers(events, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Blockers) != 5 {
		t.Fatalf("expected 5 blockers, got %d", len(res.Blockers))
	}
	if len(res.TruncatedEvents) != 1 || res.TruncatedEvents[0] != "gym" {
		t.Fatalf("unexpected truncation report %v", res.TruncatedEvents)
	}
}

func TestExpandBlockersAllDay(t *testing.T) {
	start := time.Date(2026, time.July, 14, 0, 0, 0, 0, time.UTC)
	events := []ParsedEvent{{
		Source:  Source{ID: "home"},
		UID:     "holiday",
		Summary: "Holiday",
		Start:   start,
		End:     start.AddDate(0, 0, 1),
		AllDay:  true,
	}}
	res, err := ExpandBlockers(events, festivalRange())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Blockers) != 1 || res.Blockers[0].Duration() != 24*time.Hour {
		t.Fatalf("unexpected all-day blocker %+v", res.Blockers)
	}
}

func TestExpandBlockersInvertedRange(t *testing.T) {
	cfg := festivalRange()
	cfg.RangeStart, cfg.RangeEnd = cfg.RangeEnd, cfg.RangeStart
	if _, err := ExpandBlockers(nil, cfg); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestFetcherConditionalAndFallback(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	var conditional atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
		}
		switch int(status.Load()) {
		case http.StatusOK:
			w.Header().Set("ETag", `"v1"`)
			_, _ = w.Write([]byte(sampleICS))
		case http.StatusNotModified:
			w.WriteHeader(http.StatusNotModified)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir()).WithClient(srv.Client())
	src := Source{ID: "work", URL: srv.URL + "/secret-token/basic.ics"}
	ctx := context.Background()

	res, err := f.FetchOne(ctx, src)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if res.FromCache || len(res.Body) == 0 {
		t.Fatalf("expected fresh body, got %+v", res.FromCache)
	}

	status.Store(http.StatusNotModified)
	res, err = f.FetchOne(ctx, src)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !res.FromCache || string(res.Body) != sampleICS {
		t.Fatalf("expected cached body on 304")
	}
	if conditional.Load() != 1 {
		t.Fatalf("expected one conditional request, got %d", conditional.Load())
	}

	status.Store(http.StatusInternalServerError)
	res, err = f.FetchOne(ctx, src)
	if err != nil {
		t.Fatalf("fallback fetch: %v", err)
	}
	if !res.FromCache {
		t.Fatalf("expected cache fallback on 500")
	}
}

func TestFetchAllCollectsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir()).WithClient(srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "missing", URL: srv.URL + "/missing.ics"},
		{ID: "empty"},
	})
	if len(results) != 0 || len(errs) != 2 {
		t.Fatalf("results=%d errs=%d", len(results), len(errs))
	}
	var se *StatusError
	if !errors.As(errs[0], &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected StatusError 404, got %v", errs[0])
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("https://calendar.example.com/private-abc/basic.ics"); got != "https://calendar.example.com/...(redacted)" {
		t.Fatalf("unexpected redaction %q", got)
	}
	if got := redactURL("not a url"); got != "ics://...(redacted)" {
		t.Fatalf("unexpected redaction %q", got)
	}
}

func TestExportChosen(t *testing.T) {
	start := time.Date(2026, time.July, 8, 14, 30, 0, 0, time.UTC)
	rep, err := model.NewCandidate("rep-0008", "hamlet", "Hamlet", start, start.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("candidate: %v", err)
	}
	blk, err := model.NewBlocker("work:x", "Busy", start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("blocker: %v", err)
	}

	out := ExportChosen([]model.Interval{rep, blk}, "My festival", start)
	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("exported calendar does not parse: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got, err := events[0].GetStartAt()
	if err != nil || !got.Equal(start) {
		t.Fatalf("unexpected start %v (%v)", got, err)
	}
	if p := events[0].GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Hamlet" {
		t.Fatalf("unexpected summary %+v", p)
	}
}
