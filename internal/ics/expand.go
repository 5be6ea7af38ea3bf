package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "festcal/internal/log"
	"festcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how calendar events become blockers.
type ExpandConfig struct {
	// DisplayLocation is the zone blockers are converted to. If nil,
	// time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences, inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single recurring event. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the generated blockers and the UIDs that hit the cap.
type ExpandResult struct {
	Blockers        []model.Interval
	TruncatedEvents []string
}

// ExpandBlockers turns parsed events into blocker intervals within the
// range, handling RRULE, EXDATE and RECURRENCE-ID overrides. Blocker IDs
// are "<source>:<uid>:<start RFC3339>", unique per occurrence. Events with
// no duration are dropped since they cannot block anything.
func ExpandBlockers(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// UIDs are only unique within one calendar, so overrides never cross
	// sources.
	base := make(map[eventKey][]ParsedEvent)
	overrides := make(map[eventKey][]ParsedEvent)
	keys := make([]eventKey, 0)
	for _, ev := range events {
		k := eventKey{source: ev.Source.ID, uid: ev.UID}
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[k] = append(overrides[k], ev)
			continue
		}
		if _, ok := base[k]; !ok {
			keys = append(keys, k)
		}
		base[k] = append(base[k], ev)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].uid < keys[j].uid
	})

	seen := make(map[string]struct{})
	out := make([]model.Interval, 0)

	for _, k := range keys {
		uid := k.uid
		truncated := false
		for _, ev := range base[k] {
			spans, hitCap := expandEvent(ev, overrides[k], cfg)
			truncated = truncated || hitCap
			for _, sp := range spans {
				iv, err := toBlocker(sp, cfg.DisplayLocation)
				if err != nil {
					appLog.Debug("expand: skipping event without duration", "uid", uid, "start", sp.start)
					continue
				}
				if _, dup := seen[iv.ID]; dup {
					continue
				}
				seen[iv.ID] = struct{}{}
				out = append(out, iv)
			}
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"source", k.source,
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	result.Blockers = out
	return result, nil
}

type eventKey struct {
	source string
	uid    string
}

// span is one concrete occurrence before conversion.
type span struct {
	ev         ParsedEvent
	start, end time.Time
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]span, bool) {
	if ev.RawRRule == "" {
		start, end := ev.Start, ev.End
		if o, ok := findOverride(overrides, start); ok {
			ev, start, end = o, o.Start, o.End
		}
		if !rangesTouch(start, end, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []span{{ev: ev, start: start, end: end}}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	// Pull the window back by one duration so occurrences that started
	// before RangeStart but still run into it are kept.
	from := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(from, to, true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]span, 0, len(starts))
	for _, st := range starts {
		var end time.Time
		if ev.AllDay {
			st = time.Date(st.Year(), st.Month(), st.Day(), 0, 0, 0, 0, st.Location())
			end = st.AddDate(0, 0, 1)
		} else {
			end = st.Add(dur)
		}
		sp := span{ev: ev, start: st, end: end}
		if o, ok := findOverride(overrides, st); ok {
			sp = span{ev: o, start: o.Start, end: o.End}
		}
		out = append(out, sp)
	}
	return out, hitCap
}

// findOverride finds the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func toBlocker(sp span, loc *time.Location) (model.Interval, error) {
	start := sp.start.In(loc)
	end := sp.end.In(loc)
	id := fmt.Sprintf("%s:%s:%s", sp.ev.Source.ID, sp.ev.UID, start.Format(time.RFC3339))
	return model.NewBlocker(id, sp.ev.Summary, start, end)
}

func rangesTouch(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
