// Package calendar runs the display pipeline: pick the representations of
// a date window, resolve their visibility against the user's selection and
// blockers, then lay each day out.
package calendar

import (
	"errors"
	"time"

	"festcal/internal/layout"
	"festcal/internal/model"
	"festcal/internal/visibility"
)

// Options is everything one calendar view depends on.
type Options struct {
	// Representations is the full festival candidate list.
	Representations []model.Interval
	// Blockers are the user's busy periods; only those touching the
	// window are used.
	Blockers []model.Interval

	Selection visibility.Selection

	// From and To are the first and last day shown, inclusive. Only the
	// date in Location matters.
	From     time.Time
	To       time.Time
	Location *time.Location
}

// Item is a positioned interval in a day column.
type Item struct {
	model.Interval
	Lane       int
	TotalLanes int
	Box        layout.Box
	Chosen     bool
}

// Day is one column of the calendar.
type Day struct {
	Date  time.Time
	Items []Item
}

// View is the rendered window plus the visibility outcome behind it.
type View struct {
	Days    []Day
	Visible []string
	Hidden  []string
}

// Build computes the view. Visible candidates and blockers share the lanes
// of their day so a blocker is drawn beside the shows it displaces. A
// blocker spanning midnight is drawn on every day of the window it covers,
// clipped to that day.
func Build(opts Options) (View, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	from := midnight(opts.From, loc)
	to := midnight(opts.To, loc)
	if to.Before(from) {
		return View{}, errors.New("calendar: window ends before it starts")
	}
	end := to.AddDate(0, 0, 1)

	candidates := visibility.InRange(opts.Representations, from, end.Add(-time.Nanosecond))

	blockers := make([]model.Interval, 0)
	for _, b := range opts.Blockers {
		if b.Start.Before(end) && from.Before(b.End) {
			blockers = append(blockers, b)
		}
	}

	res := visibility.Resolve(opts.Selection.Input(candidates, blockers))

	segments, source := splitByDay(blockers, from, end, loc)
	shown := make([]model.Interval, 0, len(res.VisibleIntervals)+len(segments))
	shown = append(shown, res.VisibleIntervals...)
	shown = append(shown, segments...)

	days, err := layout.ByDay(shown, loc)
	if err != nil {
		return View{}, err
	}

	view := View{
		Days:    make([]Day, 0, len(days)),
		Visible: res.Visible.Sorted(),
		Hidden:  res.Hidden.Sorted(),
	}
	for _, d := range days {
		byID := make(map[string]model.Interval, len(d.Intervals))
		for _, iv := range d.Intervals {
			byID[iv.ID] = iv
		}
		day := Day{Date: d.Day, Items: make([]Item, 0, len(d.Assignments))}
		for _, a := range d.Assignments {
			iv := byID[a.ID]
			if id, ok := source[a.ID]; ok {
				iv.ID = id
			}
			day.Items = append(day.Items, Item{
				Interval:   iv,
				Lane:       a.Lane,
				TotalLanes: a.TotalLanes,
				Box:        layout.Geometry(a),
				Chosen:     opts.Selection.Chosen.Has(a.ID),
			})
		}
		view.Days = append(view.Days, day)
	}
	return view, nil
}

// splitByDay clips blockers to the days of [from, end) they cover. Each
// segment gets the ID "<id>@<date>"; source maps it back to the blocker ID.
func splitByDay(blockers []model.Interval, from, end time.Time, loc *time.Location) ([]model.Interval, map[string]string) {
	segments := make([]model.Interval, 0, len(blockers))
	source := make(map[string]string, len(blockers))
	for _, b := range blockers {
		day := midnight(b.Start, loc)
		if day.Before(from) {
			day = from
		}
		for ; day.Before(end) && day.Before(b.End); day = day.AddDate(0, 0, 1) {
			next := day.AddDate(0, 0, 1)
			seg := b
			if seg.Start.Before(day) {
				seg.Start = day
			}
			if next.Before(seg.End) {
				seg.End = next
			}
			if !seg.Start.Before(seg.End) {
				continue
			}
			seg.ID = b.ID + "@" + day.Format("2006-01-02")
			source[seg.ID] = b.ID
			segments = append(segments, seg)
		}
	}
	return segments, source
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
