package calendar

import (
	"strings"
	"testing"
	"time"

	"festcal/internal/model"
	"festcal/internal/visibility"
)

func at(day int, hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, time.July, day, t.Hour(), t.Minute(), 0, 0, time.UTC)
}

func mustRep(t *testing.T, id, play string, day int, from, to string) model.Interval {
	t.Helper()
	iv, err := model.NewCandidate(id, play, strings.ToUpper(play[:1])+play[1:], at(day, from), at(day, to))
	if err != nil {
		t.Fatalf("candidate %s: %v", id, err)
	}
	return iv
}

func fixture(t *testing.T) Options {
	t.Helper()
	blk, err := model.NewBlocker("b1", "Dentist", at(8, "14:00"), at(8, "15:00"))
	if err != nil {
		t.Fatalf("blocker: %v", err)
	}
	return Options{
		Representations: []model.Interval{
			mustRep(t, "r1", "hamlet", 8, "10:00", "11:30"),
			mustRep(t, "r2", "medea", 8, "11:00", "12:00"),
			mustRep(t, "r3", "hamlet", 9, "10:00", "11:30"),
			mustRep(t, "r4", "ubu", 8, "14:30", "15:30"),
		},
		Blockers:  []model.Interval{blk},
		Selection: visibility.NewSelection([]string{"hamlet", "medea", "ubu"}, nil),
		From:      at(8, "00:00"),
		To:        at(8, "00:00"),
		Location:  time.UTC,
	}
}

func TestBuildSingleDay(t *testing.T) {
	view, err := Build(fixture(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Days) != 1 {
		t.Fatalf("expected one day, got %d", len(view.Days))
	}
	if strings.Join(view.Visible, ",") != "r1,r2" || strings.Join(view.Hidden, ",") != "r4" {
		t.Fatalf("visible=%v hidden=%v", view.Visible, view.Hidden)
	}

	got := make(map[string]Item)
	for _, it := range view.Days[0].Items {
		got[it.ID] = it
	}
	if len(got) != 3 {
		t.Fatalf("expected r1, r2 and b1, got %v", got)
	}
	if got["r1"].Lane != 0 || got["r2"].Lane != 1 || got["r1"].TotalLanes != 2 {
		t.Fatalf("unexpected lanes: r1=%+v r2=%+v", got["r1"], got["r2"])
	}
	if got["r2"].Box.LeftPercent != 50 || got["r2"].Box.WidthPercent != 50 {
		t.Fatalf("unexpected box %+v", got["r2"].Box)
	}
	if got["b1"].TotalLanes != 1 || !got["b1"].IsBlocker() {
		t.Fatalf("unexpected blocker item %+v", got["b1"])
	}
}

func TestBuildChosenEvictsOverlap(t *testing.T) {
	opts := fixture(t)
	opts.Selection = visibility.NewSelection([]string{"hamlet", "medea"}, []string{"r1"})
	view, err := Build(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := view.Days[0].Items
	if len(items) != 2 || items[0].ID != "r1" || !items[0].Chosen || items[0].TotalLanes != 1 {
		t.Fatalf("unexpected items %+v", items)
	}
	if strings.Join(view.Hidden, ",") != "r2,r4" {
		t.Fatalf("unexpected hidden %v", view.Hidden)
	}
}

func TestBuildTwoDays(t *testing.T) {
	opts := fixture(t)
	opts.To = at(9, "00:00")
	view, err := Build(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Days) != 2 || view.Days[1].Date.Day() != 9 {
		t.Fatalf("unexpected days %+v", view.Days)
	}
}

func TestBuildInvertedWindow(t *testing.T) {
	opts := fixture(t)
	opts.From, opts.To = at(9, "00:00"), at(8, "00:00")
	if _, err := Build(opts); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}

func TestBuildOvernightBlockerDrawnOnNextDay(t *testing.T) {
	night, err := model.NewBlocker("night", "Late train", at(1, "23:00"), at(2, "02:00"))
	if err != nil {
		t.Fatalf("blocker: %v", err)
	}
	opts := Options{
		Representations: []model.Interval{
			mustRep(t, "rep-1", "hamlet", 2, "14:30", "16:00"),
			mustRep(t, "rep-2", "hamlet", 2, "00:30", "02:00"),
		},
		Blockers:  []model.Interval{night},
		Selection: visibility.NewSelection([]string{"hamlet"}, nil),
		From:      at(2, "00:00"),
		To:        at(2, "00:00"),
		Location:  time.UTC,
	}
	view, err := Build(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(view.Hidden, ",") != "rep-2" || strings.Join(view.Visible, ",") != "rep-1" {
		t.Fatalf("visible=%v hidden=%v", view.Visible, view.Hidden)
	}
	if len(view.Days) != 1 || view.Days[0].Date.Day() != 2 {
		t.Fatalf("unexpected days %+v", view.Days)
	}
	got := make(map[string]Item)
	for _, it := range view.Days[0].Items {
		got[it.ID] = it
	}
	blk, ok := got["night"]
	if !ok || len(got) != 2 {
		t.Fatalf("expected rep-1 and night on 2 July, got %+v", view.Days[0].Items)
	}
	if !blk.Start.Equal(at(2, "00:00")) || !blk.End.Equal(at(2, "02:00")) || !blk.IsBlocker() {
		t.Fatalf("blocker not clipped to the day: %+v", blk)
	}
}

func TestBuildMultiDayBlockerOnEveryDay(t *testing.T) {
	trip, err := model.NewBlocker("trip", "Away", at(8, "00:00"), at(11, "00:00"))
	if err != nil {
		t.Fatalf("blocker: %v", err)
	}
	opts := fixture(t)
	opts.Blockers = []model.Interval{trip}
	opts.To = at(10, "00:00")

	view, err := Build(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Visible) != 0 || strings.Join(view.Hidden, ",") != "r1,r2,r3,r4" {
		t.Fatalf("visible=%v hidden=%v", view.Visible, view.Hidden)
	}
	if len(view.Days) != 3 {
		t.Fatalf("expected 8, 9 and 10 July, got %d days", len(view.Days))
	}
	for i, d := range view.Days {
		if d.Date.Day() != 8+i {
			t.Fatalf("day %d: unexpected date %v", i, d.Date)
		}
		if len(d.Items) != 1 || d.Items[0].ID != "trip" {
			t.Fatalf("day %d: expected only the trip, got %+v", i, d.Items)
		}
		it := d.Items[0]
		if !it.Start.Equal(d.Date) || !it.End.Equal(d.Date.AddDate(0, 0, 1)) || it.TotalLanes != 1 {
			t.Fatalf("day %d: unexpected segment %+v", i, it)
		}
	}
}

func TestBuildBlockerStartingBeforeWindow(t *testing.T) {
	trip, err := model.NewBlocker("trip", "Away", at(7, "20:00"), at(8, "10:30"))
	if err != nil {
		t.Fatalf("blocker: %v", err)
	}
	opts := fixture(t)
	opts.Blockers = []model.Interval{trip}

	view, err := Build(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, it := range view.Days[0].Items {
		if it.ID == "trip" {
			found = it.Start.Equal(at(8, "00:00")) && it.End.Equal(at(8, "10:30"))
		}
	}
	if !found || strings.Join(view.Hidden, ",") != "r1" {
		t.Fatalf("items=%+v hidden=%v", view.Days[0].Items, view.Hidden)
	}
}
