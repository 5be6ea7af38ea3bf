// Package visibility derives which show representations can be displayed
// given the user's favorites, confirmed choices and busy periods.
//
// Resolve is recomputed from scratch on every change and never mutates
// or keeps its inputs.
package visibility

import (
	"time"

	"festcal/internal/layout"
	"festcal/internal/model"
)

// Input is an immutable snapshot of everything the resolver reads.
type Input struct {
	// Candidates are the representations in the current date window.
	Candidates []model.Interval
	// Blockers are the user's busy periods.
	Blockers []model.Interval

	Favorites      Set // play IDs
	Chosen         Set // representation IDs
	ShowOnlyChosen bool
}

// Result holds the derived sets. Hidden only lists candidates excluded by
// a conflict or by their play already being chosen; candidates of
// non-favorite plays are simply absent from Visible.
type Result struct {
	Hidden  Set
	Visible Set

	// VisibleIntervals lists the visible candidates in input order.
	VisibleIntervals []model.Interval
}

// Resolve applies the hiding rules in order:
//
//  1. other representations of a chosen play are hidden;
//  2. representations overlapping a chosen one are hidden;
//  3. remaining representations overlapping a blocker are hidden.
//
// Chosen representations are never hidden. Chosen IDs that are not among
// the candidates are ignored.
func Resolve(in Input) Result {
	hidden := make(Set)

	chosen := make([]model.Interval, 0, len(in.Chosen))
	for _, c := range in.Candidates {
		if in.Chosen.Has(c.ID) {
			chosen = append(chosen, c)
		}
	}

	for _, ch := range chosen {
		for _, c := range in.Candidates {
			if c.ID == ch.ID || in.Chosen.Has(c.ID) {
				continue
			}
			if c.GroupID == ch.GroupID || layout.Overlaps(ch, c) {
				hidden.Add(c.ID)
			}
		}
	}

	for _, c := range in.Candidates {
		if hidden.Has(c.ID) || in.Chosen.Has(c.ID) {
			continue
		}
		for _, b := range in.Blockers {
			if layout.Overlaps(b, c) {
				hidden.Add(c.ID)
				break
			}
		}
	}

	res := Result{Hidden: hidden, Visible: make(Set)}
	for _, c := range in.Candidates {
		if !in.Favorites.Has(c.GroupID) {
			continue
		}
		isChosen := in.Chosen.Has(c.ID)
		if in.ShowOnlyChosen && !isChosen {
			continue
		}
		if hidden.Has(c.ID) && !isChosen {
			continue
		}
		res.Visible.Add(c.ID)
		res.VisibleIntervals = append(res.VisibleIntervals, c)
	}
	return res
}

// InRange keeps candidates whose start lies in [from, to].
func InRange(candidates []model.Interval, from, to time.Time) []model.Interval {
	out := make([]model.Interval, 0, len(candidates))
	for _, c := range candidates {
		if c.Start.Before(from) || c.Start.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Conflicts returns every interval in all, other than target itself, that
// overlaps target.
func Conflicts(target model.Interval, all []model.Interval) []model.Interval {
	var out []model.Interval
	for _, iv := range all {
		if iv.ID != target.ID && layout.Overlaps(target, iv) {
			out = append(out, iv)
		}
	}
	return out
}
