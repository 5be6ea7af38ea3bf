package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"festcal/internal/model"
)

// ExportChosen renders the given representations as a VCALENDAR that a
// phone calendar can import. Blockers in the list are skipped.
func ExportChosen(chosen []model.Interval, name string, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//festcal//chosen shows//FR")
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, iv := range chosen {
		if !iv.IsCandidate() {
			continue
		}
		ev := cal.AddEvent(iv.ID + "@festcal")
		ev.SetDtStampTime(now.UTC())
		ev.SetStartAt(iv.Start.UTC())
		ev.SetEndAt(iv.End.UTC())
		ev.SetSummary(iv.Title)
		ev.SetDescription("play:" + iv.GroupID)
	}

	return cal.Serialize()
}
