package schedule

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
	defaultMaxOccurrencesPerPlay = 5000
)

// ExpandConfig controls how play schedules are turned into representations.
type ExpandConfig struct {
	// RangeStart / RangeEnd are the first and last festival days, inclusive.
	// Only their calendar date in Location matters.
	RangeStart time.Time
	RangeEnd   time.Time

	// Location is the wall-clock zone of play start times. If nil,
	// time.Local is used.
	Location *time.Location

	// MaxOccurrencesPerPlay caps the expansion of a single play. If zero,
	// defaultMaxOccurrencesPerPlay is used.
	MaxOccurrencesPerPlay int
}

// ExpandResult wraps the generated representations and the plays that hit
// the cap.
type ExpandResult struct {
	Representations []model.Interval
	Truncated       []string
}

// Expand generates one candidate interval per (play, matching day). IDs are
// "rep-0001", "rep-0002", ... numbered in play order then day order, and
// the result is sorted by start time.
func Expand(plays []model.Play, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerPlay <= 0 {
		cfg.MaxOccurrencesPerPlay = defaultMaxOccurrencesPerPlay
	}
	first := dateOf(cfg.RangeStart, cfg.Location)
	last := dateOf(cfg.RangeEnd, cfg.Location)
	if last.Before(first) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}

	seq := 1
	out := make([]model.Interval, 0)

	for _, p := range plays {
		if err := p.Validate(); err != nil {
			return ExpandResult{}, err
		}

		starts, err := occurrenceStarts(p, first, last)
		if err != nil {
			return ExpandResult{}, fmt.Errorf("expand %s: %w", p.ID, err)
		}
		if len(starts) > cfg.MaxOccurrencesPerPlay {
			starts = starts[:cfg.MaxOccurrencesPerPlay]
			result.Truncated = append(result.Truncated, p.ID)
			appLog.Error("expand: truncated representations for play due to cap",
				errors.New("max occurrences reached"),
				"play", p.ID,
				"cap", cfg.MaxOccurrencesPerPlay,
			)
		}

		dur := time.Duration(p.DurationMinutes) * time.Minute
		for _, st := range starts {
			iv, err := model.NewCandidate(fmt.Sprintf("rep-%04d", seq), p.ID, p.Title, st, st.Add(dur))
			if err != nil {
				return ExpandResult{}, err
			}
			out = append(out, iv)
			seq++
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })

	appLog.Debug("expand completed", "plays", len(plays), "representations", len(out),
		"range_start", first.Format("2006-01-02"), "range_end", last.Format("2006-01-02"))

	result.Representations = out
	return result, nil
}

// occurrenceStarts compiles the play's pattern into a recurrence rule and
// returns every start in [first, last] (both local midnights).
func occurrenceStarts(p model.Play, first, last time.Time) ([]time.Time, error) {
	dtstart := time.Date(first.Year(), first.Month(), first.Day(),
		p.StartTime.Hour, p.StartTime.Minute, 0, 0, first.Location())
	until := time.Date(last.Year(), last.Month(), last.Day(),
		p.StartTime.Hour, p.StartTime.Minute, 0, 0, last.Location())

	opt, ok := ruleOption(p.Schedule)
	if !ok {
		// specific-days with no days
		return nil, nil
	}
	if p.Schedule.Type == model.PatternEveryOtherDay {
		dtstart = dtstart.AddDate(0, 0, p.Schedule.StartOffset)
		if dtstart.After(until) {
			return nil, nil
		}
	}
	opt.Dtstart = dtstart
	opt.Until = until

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, err
	}
	return r.Between(dtstart, until, true), nil
}

// ruleOption maps a schedule pattern onto an RFC 5545 rule.
func ruleOption(s model.SchedulePattern) (rrule.ROption, bool) {
	switch s.Type {
	case model.PatternDaily:
		return rrule.ROption{Freq: rrule.DAILY}, true
	case model.PatternEveryOtherDay:
		return rrule.ROption{Freq: rrule.DAILY, Interval: 2}, true
	case model.PatternDailyExcept:
		days := make([]int, 0, 6)
		for d := 0; d < 7; d++ {
			if d != s.ExceptDay {
				days = append(days, d)
			}
		}
		return rrule.ROption{Freq: rrule.WEEKLY, Byweekday: weekdays(days)}, true
	case model.PatternSpecificDays:
		if len(s.Days) == 0 {
			return rrule.ROption{}, false
		}
		return rrule.ROption{Freq: rrule.WEEKLY, Byweekday: weekdays(s.Days)}, true
	}
	return rrule.ROption{}, false
}

// byWeekday is indexed by time.Weekday (0 = Sunday).
var byWeekday = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func weekdays(days []int) []rrule.Weekday {
	out := make([]rrule.Weekday, 0, len(days))
	seen := [7]bool{}
	for _, d := range days {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, byWeekday[d])
	}
	return out
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
