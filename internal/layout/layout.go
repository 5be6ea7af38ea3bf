// Package layout packs overlapping intervals of a single day into lanes.
//
// Intervals are sorted by start (longer first on ties), split into
// clusters of transitively overlapping items, and each cluster is packed
// first-fit. Every member of a cluster reports the cluster's lane count.
// Rendered positions depend on the exact lane numbers, so the packing is a
// plain greedy pass and must not be replaced by a smarter colouring.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"festcal/internal/model"
)

// ErrDuplicateID is returned when two input intervals share an ID.
var ErrDuplicateID = errors.New("duplicate interval id")

// ErrInvalidInterval aliases the model error so callers can match either.
var ErrInvalidInterval = model.ErrInvalidInterval

// Overlaps reports whether a and b share any instant. Ranges are half-open,
// so an interval ending at 11:00 does not overlap one starting at 11:00.
func Overlaps(a, b model.Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Compute assigns a lane to every interval. The input is treated as one
// timeline; callers split by day first (see ByDay). The input slice is not
// modified. Output follows the internal sort order.
func Compute(intervals []model.Interval) ([]model.Assignment, error) {
	if len(intervals) == 0 {
		return []model.Assignment{}, nil
	}
	if err := check(intervals); err != nil {
		return nil, err
	}

	sorted := make([]model.Interval, len(intervals))
	copy(sorted, intervals)
	sortIntervals(sorted)

	out := make([]model.Assignment, 0, len(sorted))

	var (
		cluster    []model.Interval
		clusterEnd time.Time
	)
	for _, iv := range sorted {
		if len(cluster) > 0 && !iv.Start.Before(clusterEnd) {
			out = append(out, pack(cluster)...)
			cluster = cluster[:0]
		}
		if len(cluster) == 0 || iv.End.After(clusterEnd) {
			clusterEnd = iv.End
		}
		cluster = append(cluster, iv)
	}
	out = append(out, pack(cluster)...)

	return out, nil
}

// pack runs first-fit over one cluster, already in sorted order.
func pack(cluster []model.Interval) []model.Assignment {
	// laneEnds[i] is the end of the last interval placed in lane i.
	laneEnds := make([]time.Time, 0, 4)
	lanes := make([]int, len(cluster))

	for i, iv := range cluster {
		placed := -1
		for l, end := range laneEnds {
			if !end.After(iv.Start) {
				placed = l
				break
			}
		}
		if placed < 0 {
			laneEnds = append(laneEnds, iv.End)
			placed = len(laneEnds) - 1
		} else {
			laneEnds[placed] = iv.End
		}
		lanes[i] = placed
	}

	total := len(laneEnds)
	out := make([]model.Assignment, len(cluster))
	for i, iv := range cluster {
		out[i] = model.Assignment{ID: iv.ID, Lane: lanes[i], TotalLanes: total}
	}
	return out
}

// sortIntervals orders by start ascending, then end descending. The ID
// breaks the remaining ties so shuffled input yields the same lanes.
func sortIntervals(ivs []model.Interval) {
	sort.Slice(ivs, func(i, j int) bool {
		a, b := ivs[i], ivs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.After(b.End)
		}
		return a.ID < b.ID
	})
}

func check(intervals []model.Interval) error {
	seen := make(map[string]struct{}, len(intervals))
	for _, iv := range intervals {
		if !iv.Start.Before(iv.End) {
			return fmt.Errorf("layout: %w: id=%s", ErrInvalidInterval, iv.ID)
		}
		if _, dup := seen[iv.ID]; dup {
			return fmt.Errorf("layout: %w: %s", ErrDuplicateID, iv.ID)
		}
		seen[iv.ID] = struct{}{}
	}
	return nil
}

// Index maps assignments by interval ID.
func Index(as []model.Assignment) map[string]model.Assignment {
	m := make(map[string]model.Assignment, len(as))
	for _, a := range as {
		m[a.ID] = a
	}
	return m
}
