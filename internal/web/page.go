package web

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"festcal/internal/calendar"
	appLog "festcal/internal/log"
	"festcal/internal/visibility"
)

// The page is the capture target of `festcal snapshot`: the root element
// carries data-ready="true" once it is fully rendered server side.
var pageTmpl = template.Must(template.New("calendar").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 0; background: #fff; }
h1 { font-size: 20px; margin: 8px 12px; }
.grid { position: relative; height: {{.HeightPx}}px; margin: 0 12px 0 56px; border-left: 1px solid #999; }
.hour { position: absolute; left: -48px; right: 0; border-top: 1px dotted #ccc; font-size: 11px; color: #666; }
.item { position: absolute; box-sizing: border-box; padding: 2px 4px; overflow: hidden; font-size: 12px; border: 1px solid #333; }
.candidate { background: #dde8ff; }
.chosen { background: #7aa6ff; font-weight: bold; }
.blocker { background: repeating-linear-gradient(45deg, #eee, #eee 6px, #ddd 6px, #ddd 12px); color: #555; }
.empty { margin: 12px; color: #777; }
</style>
</head>
<body>
<div id="calendar" data-ready="true" data-day="{{.Day}}">
<h1>{{.Title}}</h1>
{{if .Items}}
<div class="grid">
{{range .Hours}}<div class="hour" style="top: {{.Top}}%">{{.Label}}</div>
{{end}}
{{range .Items}}<div class="item {{.Class}}" data-id="{{.ID}}" data-lane="{{.Lane}}" style="top: {{.Top}}%; height: {{.Height}}%; left: {{.Left}}%; width: {{.Width}}%">
<span class="time">{{.From}}-{{.To}}</span> <span class="title">{{.Title}}</span>
</div>
{{end}}
</div>
{{else}}
<p class="empty">Nothing to show on this day.</p>
{{end}}
</div>
</body>
</html>
`))

type pageHour struct {
	Top   string
	Label string
}

type pageItem struct {
	ID     string
	Class  string
	Title  string
	From   string
	To     string
	Lane   int
	Top    string
	Height string
	Left   string
	Width  string
}

type pageData struct {
	Title    string
	Day      string
	HeightPx int
	Hours    []pageHour
	Items    []pageItem
}

const (
	pageFirstHour = 9
	pageLastHour  = 24
)

// handleCalendarPage renders one festival day as HTML.
//
// GET /calendar?day=2026-07-08&favorites=hamlet,medea&chosen=rep-0008&only_chosen=1
//
// Without a favorites parameter every play counts as a favorite.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()

	day, _, err := s.window(q.Get("day"), q.Get("day"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var favorites []string
	if _, ok := q["favorites"]; ok {
		favorites = splitList(q.Get("favorites"))
	} else {
		for _, p := range s.catalog.Plays {
			favorites = append(favorites, p.ID)
		}
	}
	onlyChosen := q.Get("only_chosen") == "1" || q.Get("only_chosen") == "true"
	sel := visibility.NewSelection(favorites, splitList(q.Get("chosen"))).SetShowOnlyChosen(onlyChosen)

	view, err := s.buildView(sel, day, day)
	if err != nil {
		appLog.Error("calendar page: build failed", err, "day", day.Format(dateLayout))
		http.Error(w, "failed to build calendar", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:    day.Format("Monday 2 January 2006"),
		Day:      day.Format(dateLayout),
		HeightPx: (pageLastHour - pageFirstHour) * 60,
	}
	for h := pageFirstHour; h < pageLastHour; h++ {
		data.Hours = append(data.Hours, pageHour{
			Top:   percent(time.Duration(h-pageFirstHour) * time.Hour),
			Label: time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("15:04"),
		})
	}
	if len(view.Days) > 0 {
		data.Items = pageItems(view.Days[0], s.loc)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, data); err != nil {
		appLog.Error("calendar page: template failed", err)
	}
}

func pageItems(d calendar.Day, loc *time.Location) []pageItem {
	origin := d.Date.Add(pageFirstHour * time.Hour)
	dayEnd := d.Date.AddDate(0, 0, 1)

	out := make([]pageItem, 0, len(d.Items))
	for _, it := range d.Items {
		start, end := it.Start, it.End
		if start.Before(origin) {
			start = origin
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		if !start.Before(end) {
			continue
		}
		class := "candidate"
		switch {
		case it.IsBlocker():
			class = "blocker"
		case it.Chosen:
			class = "chosen"
		}
		out = append(out, pageItem{
			ID:     it.ID,
			Class:  class,
			Title:  it.Title,
			From:   it.Start.In(loc).Format("15:04"),
			To:     it.End.In(loc).Format("15:04"),
			Lane:   it.Lane,
			Top:    percent(start.Sub(origin)),
			Height: percent(end.Sub(start)),
			Left:   formatFloat(it.Box.LeftPercent),
			Width:  formatFloat(it.Box.WidthPercent),
		})
	}
	return out
}

func percent(d time.Duration) string {
	span := time.Duration(pageLastHour-pageFirstHour) * time.Hour
	return formatFloat(float64(d) / float64(span) * 100)
}

func formatFloat(f float64) string {
	out := strings.TrimRight(strings.TrimRight(strconv.FormatFloat(f, 'f', 2, 64), "0"), ".")
	if out == "" {
		return "0"
	}
	return out
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
