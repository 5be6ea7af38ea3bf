package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInterval is returned for intervals whose start is not
	// strictly before their end.
	ErrInvalidInterval = errors.New("interval start must be before end")
	// ErrMissingGroup is returned for candidate intervals without a group.
	ErrMissingGroup = errors.New("candidate interval has no group")
	// ErrMissingID is returned for intervals without an identifier.
	ErrMissingID = errors.New("interval has no id")
)

// Kind tells blockers and candidates apart. It is fixed when the Interval
// is built and never re-derived from selection state.
type Kind string

const (
	// KindBlocker is a user-owned busy period (e.g. from a personal calendar).
	KindBlocker Kind = "blocker"
	// KindCandidate is one generated representation of a play.
	KindCandidate Kind = "candidate"
)

// Interval is a time-bound item with a stable identity. Both blockers and
// show representations are Intervals; GroupID is only set for candidates.
type Interval struct {
	ID      string
	Kind    Kind
	GroupID string
	Title   string

	Start time.Time
	End   time.Time
}

// NewBlocker builds a validated blocker interval.
func NewBlocker(id, title string, start, end time.Time) (Interval, error) {
	iv := Interval{ID: id, Kind: KindBlocker, Title: title, Start: start, End: end}
	return iv, iv.Validate()
}

// NewCandidate builds a validated candidate interval belonging to groupID.
func NewCandidate(id, groupID, title string, start, end time.Time) (Interval, error) {
	iv := Interval{ID: id, Kind: KindCandidate, GroupID: groupID, Title: title, Start: start, End: end}
	return iv, iv.Validate()
}

// Validate checks the construction invariants.
func (iv Interval) Validate() error {
	if iv.ID == "" {
		return ErrMissingID
	}
	if !iv.Start.Before(iv.End) {
		return fmt.Errorf("%w: id=%s start=%s end=%s", ErrInvalidInterval, iv.ID,
			iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
	}
	if iv.Kind == KindCandidate && iv.GroupID == "" {
		return fmt.Errorf("%w: id=%s", ErrMissingGroup, iv.ID)
	}
	return nil
}

func (iv Interval) IsBlocker() bool   { return iv.Kind == KindBlocker }
func (iv Interval) IsCandidate() bool { return iv.Kind == KindCandidate }

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Day returns local midnight of the calendar day the interval starts on.
func (iv Interval) Day(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	s := iv.Start.In(loc)
	return time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
}

// Assignment is the lane placement of one interval inside its overlap
// cluster. It only lives for one layout computation.
type Assignment struct {
	ID         string
	Lane       int
	TotalLanes int
}
