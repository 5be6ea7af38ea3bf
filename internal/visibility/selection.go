package visibility

import (
	"errors"
	"fmt"

	"festcal/internal/layout"
	"festcal/internal/model"
)

// ErrUnknownCandidate is returned when toggling an ID that is not a known
// representation.
var ErrUnknownCandidate = errors.New("unknown representation")

// Selection is the user's state. Transitions return a new value and leave
// the receiver untouched, so a Selection can be shared freely.
type Selection struct {
	Favorites      Set
	Chosen         Set
	ShowOnlyChosen bool
}

// NewSelection copies favorites and chosen into a fresh Selection.
func NewSelection(favorites, chosen []string) Selection {
	return Selection{Favorites: NewSet(favorites...), Chosen: NewSet(chosen...)}
}

func (s Selection) clone() Selection {
	return Selection{
		Favorites:      s.Favorites.Clone(),
		Chosen:         s.Chosen.Clone(),
		ShowOnlyChosen: s.ShowOnlyChosen,
	}
}

// ToggleFavorite adds or removes a play from the favorites.
func (s Selection) ToggleFavorite(playID string) Selection {
	next := s.clone()
	if next.Favorites.Has(playID) {
		delete(next.Favorites, playID)
	} else {
		next.Favorites.Add(playID)
	}
	return next
}

// SetShowOnlyChosen returns a copy with the flag set.
func (s Selection) SetShowOnlyChosen(v bool) Selection {
	next := s.clone()
	next.ShowOnlyChosen = v
	return next
}

// ToggleChosen confirms or un-confirms a representation. Confirming one
// evicts any previous choice of the same play and any choice overlapping
// it in time, so Chosen never holds two conflicting entries. The evicted
// IDs are returned alongside the new Selection.
func (s Selection) ToggleChosen(candidates []model.Interval, id string) (Selection, []string, error) {
	next := s.clone()
	if next.Chosen.Has(id) {
		delete(next.Chosen, id)
		return next, nil, nil
	}

	var target *model.Interval
	for i := range candidates {
		if candidates[i].ID == id {
			target = &candidates[i]
			break
		}
	}
	if target == nil {
		return s, nil, fmt.Errorf("%w: %s", ErrUnknownCandidate, id)
	}

	var evicted []string
	for _, c := range candidates {
		if c.ID == id || !next.Chosen.Has(c.ID) {
			continue
		}
		if c.GroupID == target.GroupID || layout.Overlaps(c, *target) {
			delete(next.Chosen, c.ID)
			evicted = append(evicted, c.ID)
		}
	}
	next.Chosen.Add(id)
	return next, evicted, nil
}

// Input builds a resolver input for the given window and blockers.
func (s Selection) Input(candidates, blockers []model.Interval) Input {
	return Input{
		Candidates:     candidates,
		Blockers:       blockers,
		Favorites:      s.Favorites,
		Chosen:         s.Chosen,
		ShowOnlyChosen: s.ShowOnlyChosen,
	}
}
