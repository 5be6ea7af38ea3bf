package layout

import (
	"sort"
	"time"

	"festcal/internal/model"
)

// DayLayout holds the assignments for the intervals starting on Day.
type DayLayout struct {
	Day         time.Time
	Intervals   []model.Interval
	Assignments []model.Assignment
}

// ByDay splits intervals by the calendar day of their start in loc and
// lays out each day on its own. Days are returned in ascending order.
func ByDay(intervals []model.Interval, loc *time.Location) ([]DayLayout, error) {
	if loc == nil {
		loc = time.Local
	}

	byDay := make(map[time.Time][]model.Interval)
	for _, iv := range intervals {
		d := iv.Day(loc)
		byDay[d] = append(byDay[d], iv)
	}

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]DayLayout, 0, len(days))
	for _, d := range days {
		as, err := Compute(byDay[d])
		if err != nil {
			return nil, err
		}
		out = append(out, DayLayout{Day: d, Intervals: byDay[d], Assignments: as})
	}
	return out, nil
}

// Box is the horizontal share of a column an assignment occupies, in percent.
type Box struct {
	LeftPercent  float64
	WidthPercent float64
}

// Geometry splits the column evenly between the cluster's lanes.
func Geometry(a model.Assignment) Box {
	total := a.TotalLanes
	if total < 1 {
		total = 1
	}
	w := 100.0 / float64(total)
	return Box{LeftPercent: float64(a.Lane) * w, WidthPercent: w}
}
