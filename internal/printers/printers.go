// Package printers renders representations and day layouts as terminal
// tables.
package printers

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"festcal/internal/calendar"
	"festcal/internal/model"
)

type Printer struct {
	Out io.Writer
	Loc *time.Location
}

// New returns a Printer writing to the colour-aware stdout.
func New(loc *time.Location) *Printer {
	if loc == nil {
		loc = time.Local
	}
	return &Printer{Out: color.Output, Loc: loc}
}

var (
	titleStyle   = color.New(color.Bold, color.Underline)
	faintStyle   = color.New(color.Faint)
	chosenStyle  = color.New(color.Bold, color.FgGreen)
	blockerStyle = color.New(color.Faint, color.Italic)
)

func (p *Printer) title(s string) {
	_, _ = titleStyle.Fprintln(p.Out, s)
}

func (p *Printer) none() {
	_, _ = faintStyle.Fprintln(p.Out, " none")
	_, _ = fmt.Fprintln(p.Out)
}

// Representations prints one row per representation.
func (p *Printer) Representations(reps []model.Interval) {
	p.title(fmt.Sprintf("Representations (%d)", len(reps)))
	if len(reps) == 0 {
		p.none()
		return
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("ID", "PLAY", "TITLE", "DAY", "START", "END")
	for _, r := range reps {
		tbl.AddRow(r.ID, r.GroupID, r.Title,
			r.Start.In(p.Loc).Format("Mon 02 Jan"),
			r.Start.In(p.Loc).Format("15:04"),
			r.End.In(p.Loc).Format("15:04"),
		)
	}
	_, _ = fmt.Fprintln(p.Out, tbl)
	_, _ = fmt.Fprintln(p.Out)
}

// Calendar prints every day of the view with lane placement. Chosen shows
// are highlighted and blockers dimmed.
func (p *Printer) Calendar(view calendar.View) {
	if len(view.Days) == 0 {
		p.title("Calendar")
		p.none()
	}
	for _, d := range view.Days {
		p.title(d.Date.Format("Monday 2 January 2006"))
		if len(d.Items) == 0 {
			p.none()
			continue
		}
		tbl := uitable.New()
		tbl.Separator = "  "
		tbl.AddRow("LANE", "TIME", "TITLE", "", "ID")
		for _, it := range d.Items {
			lane := fmt.Sprintf("%d/%d", it.Lane+1, it.TotalLanes)
			when := it.Start.In(p.Loc).Format("15:04") + "-" + it.End.In(p.Loc).Format("15:04")
			switch {
			case it.IsBlocker():
				tbl.AddRow(lane, when, blockerStyle.Sprint(it.Title), blockerStyle.Sprint("busy"), it.ID)
			case it.Chosen:
				tbl.AddRow(lane, when, chosenStyle.Sprint(it.Title), chosenStyle.Sprint("chosen"), it.ID)
			default:
				tbl.AddRow(lane, when, it.Title, "", it.ID)
			}
		}
		_, _ = fmt.Fprintln(p.Out, tbl)
		_, _ = fmt.Fprintln(p.Out)
	}
	if len(view.Hidden) > 0 {
		_, _ = faintStyle.Fprintf(p.Out, "hidden: %d representation(s)\n", len(view.Hidden))
	}
}
