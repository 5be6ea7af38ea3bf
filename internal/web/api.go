package web

import (
	"fmt"
	"net/http"
	"time"

	"festcal/internal/calendar"
	"festcal/internal/ics"
	"festcal/internal/layout"
	appLog "festcal/internal/log"
	"festcal/internal/model"
	"festcal/internal/visibility"
)

const dateLayout = "2006-01-02"

// intervalDTO is the wire form of model.Interval.
type intervalDTO struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind,omitempty"`
	GroupID string    `json:"group_id,omitempty"`
	Title   string    `json:"title,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

func toDTO(iv model.Interval) intervalDTO {
	return intervalDTO{
		ID:      iv.ID,
		Kind:    string(iv.Kind),
		GroupID: iv.GroupID,
		Title:   iv.Title,
		Start:   iv.Start,
		End:     iv.End,
	}
}

func toDTOs(ivs []model.Interval) []intervalDTO {
	out := make([]intervalDTO, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, toDTO(iv))
	}
	return out
}

// candidates validates the DTOs as representations.
func candidates(dtos []intervalDTO) ([]model.Interval, error) {
	out := make([]model.Interval, 0, len(dtos))
	for _, d := range dtos {
		iv, err := model.NewCandidate(d.ID, d.GroupID, d.Title, d.Start, d.End)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}

// blockers validates the DTOs as blockers.
func blockers(dtos []intervalDTO) ([]model.Interval, error) {
	out := make([]model.Interval, 0, len(dtos))
	for _, d := range dtos {
		iv, err := model.NewBlocker(d.ID, d.Title, d.Start, d.End)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}

type layoutRequest struct {
	Intervals []intervalDTO `json:"intervals"`
}

type assignmentDTO struct {
	ID         string `json:"id"`
	Lane       int    `json:"lane"`
	TotalLanes int    `json:"total_lanes"`
}

type layoutResponse struct {
	Assignments []assignmentDTO `json:"assignments"`
}

// handleLayout computes lanes for an arbitrary interval list.
//
// POST /api/layout {"intervals":[{id,start,end,...}]}
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req layoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ivs := make([]model.Interval, 0, len(req.Intervals))
	for _, d := range req.Intervals {
		ivs = append(ivs, model.Interval{
			ID:      d.ID,
			Kind:    model.Kind(d.Kind),
			GroupID: d.GroupID,
			Title:   d.Title,
			Start:   d.Start,
			End:     d.End,
		})
	}

	as, err := layout.Compute(ivs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := layoutResponse{Assignments: make([]assignmentDTO, 0, len(as))}
	for _, a := range as {
		resp.Assignments = append(resp.Assignments, assignmentDTO{ID: a.ID, Lane: a.Lane, TotalLanes: a.TotalLanes})
	}
	writeJSON(w, http.StatusOK, resp)
}

type visibilityRequest struct {
	Candidates     []intervalDTO `json:"candidates"`
	Blockers       []intervalDTO `json:"blockers"`
	Favorites      []string      `json:"favorites"`
	Chosen         []string      `json:"chosen"`
	ShowOnlyChosen bool          `json:"show_only_chosen"`
}

type visibilityResponse struct {
	Visible []string `json:"visible"`
	Hidden  []string `json:"hidden"`
}

// handleVisibility resolves caller-supplied candidates and blockers.
//
// POST /api/visibility
func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req visibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cands, err := candidates(req.Candidates)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	blks, err := blockers(req.Blockers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sel := visibility.NewSelection(req.Favorites, req.Chosen).SetShowOnlyChosen(req.ShowOnlyChosen)
	res := visibility.Resolve(sel.Input(cands, blks))
	writeJSON(w, http.StatusOK, visibilityResponse{
		Visible: res.Visible.Sorted(),
		Hidden:  res.Hidden.Sorted(),
	})
}

type selectionDTO struct {
	Favorites      []string `json:"favorites"`
	Chosen         []string `json:"chosen"`
	ShowOnlyChosen bool     `json:"show_only_chosen"`
}

type toggleRequest struct {
	selectionDTO
	ID string `json:"id"`
}

type toggleResponse struct {
	selectionDTO
	Evicted []string `json:"evicted"`
}

// handleToggle confirms or un-confirms a festival representation and
// returns the next selection. Conflicting earlier choices are evicted.
//
// POST /api/selection/toggle {"favorites":[],"chosen":[],"id":"rep-0008"}
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sel := visibility.NewSelection(req.Favorites, req.Chosen).SetShowOnlyChosen(req.ShowOnlyChosen)
	next, evicted, err := sel.ToggleChosen(s.reps, req.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if evicted == nil {
		evicted = []string{}
	}
	writeJSON(w, http.StatusOK, toggleResponse{
		selectionDTO: selectionDTO{
			Favorites:      next.Favorites.Sorted(),
			Chosen:         next.Chosen.Sorted(),
			ShowOnlyChosen: next.ShowOnlyChosen,
		},
		Evicted: evicted,
	})
}

// handlePlays returns the loaded catalog.
func (s *Server) handlePlays(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.catalog)
}

type representationsResponse struct {
	Representations []intervalDTO `json:"representations"`
	TruncatedPlays  []string      `json:"truncated_plays,omitempty"`
	From            string        `json:"from"`
	To              string        `json:"to"`
}

// handleRepresentations lists the representations starting between two
// days, both inclusive. Missing bounds default to the festival window.
//
// GET /api/representations?from=2026-07-01&to=2026-07-07
func (s *Server) handleRepresentations(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	from, to, err := s.window(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reps := visibility.InRange(s.reps, from, to.AddDate(0, 0, 1).Add(-time.Nanosecond))
	writeJSON(w, http.StatusOK, representationsResponse{
		Representations: toDTOs(reps),
		TruncatedPlays:  s.truncated,
		From:            from.Format(dateLayout),
		To:              to.Format(dateLayout),
	})
}

type blockersResponse struct {
	Blockers      []intervalDTO `json:"blockers"`
	TruncatedUIDs []string      `json:"truncated_uids,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// handleBlockers returns the blockers from the last calendar refresh.
func (s *Server) handleBlockers(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.blockers.Snapshot()
	writeJSON(w, http.StatusOK, blockersResponse{
		Blockers:      toDTOs(snap.Blockers),
		TruncatedUIDs: snap.Truncated,
		UpdatedAt:     snap.UpdatedAt,
	})
}

type calendarRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	selectionDTO
}

type itemDTO struct {
	intervalDTO
	Lane         int     `json:"lane"`
	TotalLanes   int     `json:"total_lanes"`
	LeftPercent  float64 `json:"left_percent"`
	WidthPercent float64 `json:"width_percent"`
	Chosen       bool    `json:"chosen"`
}

type dayDTO struct {
	Date  string    `json:"date"`
	Items []itemDTO `json:"items"`
}

type calendarResponse struct {
	Days    []dayDTO `json:"days"`
	Visible []string `json:"visible"`
	Hidden  []string `json:"hidden"`
}

// handleCalendar runs the full pipeline for a date window: range filter,
// visibility against the current blockers, then per-day layout.
//
// POST /api/calendar {"from":"2026-07-08","to":"2026-07-08","favorites":["hamlet"]}
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req calendarRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	from, to, err := s.window(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sel := visibility.NewSelection(req.Favorites, req.Chosen).SetShowOnlyChosen(req.ShowOnlyChosen)
	view, err := s.buildView(sel, from, to)
	if err != nil {
		appLog.Error("api calendar: build failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}

	resp := calendarResponse{
		Days:    make([]dayDTO, 0, len(view.Days)),
		Visible: view.Visible,
		Hidden:  view.Hidden,
	}
	for _, d := range view.Days {
		day := dayDTO{Date: d.Date.Format(dateLayout), Items: make([]itemDTO, 0, len(d.Items))}
		for _, it := range d.Items {
			day.Items = append(day.Items, itemDTO{
				intervalDTO:  toDTO(it.Interval),
				Lane:         it.Lane,
				TotalLanes:   it.TotalLanes,
				LeftPercent:  it.Box.LeftPercent,
				WidthPercent: it.Box.WidthPercent,
				Chosen:       it.Chosen,
			})
		}
		resp.Days = append(resp.Days, day)
	}
	writeJSON(w, http.StatusOK, resp)
}

type chosenICSRequest struct {
	Chosen []string `json:"chosen"`
	Name   string   `json:"name"`
}

// handleChosenICS exports the chosen representations as an iCalendar file.
// Unknown IDs are skipped.
//
// POST /api/chosen.ics {"chosen":["rep-0008"]}
func (s *Server) handleChosenICS(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req chosenICSRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := req.Name
	if name == "" {
		name = "Festival"
	}

	chosen := make([]model.Interval, 0, len(req.Chosen))
	for _, id := range req.Chosen {
		if rep, ok := s.repByID[id]; ok {
			chosen = append(chosen, rep)
		}
	}

	body := ics.ExportChosen(chosen, name, time.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="festcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) buildView(sel visibility.Selection, from, to time.Time) (calendar.View, error) {
	return calendar.Build(calendar.Options{
		Representations: s.reps,
		Blockers:        s.blockers.Snapshot().Blockers,
		Selection:       sel,
		From:            from,
		To:              to,
		Location:        s.loc,
	})
}

// window parses an inclusive day range. Empty bounds default to the
// festival start and end.
func (s *Server) window(fromStr, toStr string) (time.Time, time.Time, error) {
	from, to := s.festivalStart, s.festivalEnd
	var err error
	if fromStr != "" {
		if from, err = time.ParseInLocation(dateLayout, fromStr, s.loc); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %w", err)
		}
	}
	if toStr != "" {
		if to, err = time.ParseInLocation(dateLayout, toStr, s.loc); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %w", err)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to %s is before from %s", toStr, fromStr)
	}
	return from, to, nil
}
