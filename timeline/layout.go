package timeline

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Granularity is the chart's column unit.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity returns the granularity named s, defaulting to week.
func ParseGranularity(s string) Granularity {
	switch Granularity(s) {
	case GranularityDay, GranularityMonth:
		return Granularity(s)
	default:
		return GranularityWeek
	}
}

// pxPerDay is the horizontal scale for each granularity.
func (g Granularity) pxPerDay() int {
	switch g {
	case GranularityDay:
		return 40
	case GranularityMonth:
		return 5
	default:
		return 20
	}
}

// RowHeight is the height in px of every tree row and chart slot.
const RowHeight = 36

// Column is one unit in the chart header.
type Column struct {
	Label string     `json:"label"`
	Start civil.Date `json:"start"`
	X     int        `json:"x"`
	Width int        `json:"width"`
}

// Bar is an entry placed on the chart.
type Bar struct {
	Entry

	// Visible is false when the entry has no bar.
	Visible       bool `json:"visible"`
	X             int  `json:"x"`
	Y             int  `json:"y"`
	Width         int  `json:"width"`
	ProgressWidth int  `json:"progress_width"`
}

// Marker is the today line.
type Marker struct {
	Date civil.Date `json:"date"`
	X    int        `json:"x"`
}

// Layout is the pixel geometry of a chart.
type Layout struct {
	Granularity Granularity `json:"granularity"`

	// Empty is true when there are no entries; nothing else is set.
	Empty bool `json:"empty"`

	Start    civil.Date `json:"start"`
	End      civil.Date `json:"end"`
	PxPerDay int        `json:"px_per_day"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`

	Columns []Column `json:"columns"`
	Bars    []Bar    `json:"bars"`

	// Today is set only when today falls inside [Start, End].
	Today *Marker `json:"today,omitempty"`

	// ScrollTarget is the date the chart should open at, if any.
	ScrollTarget *civil.Date `json:"scroll_target,omitempty"`
	ScrollX      int         `json:"scroll_x"`
}

// maxLayoutDays bounds the chart width: the longest window plus month padding.
const maxLayoutDays = MaxWindowDays + 62

// ComputeLayout places entries on a chart.
//
// Bounds are the window when both ends are set. Otherwise they span the
// task bars (falling back to the header anchor), using whichever window end
// is set, padded out to whole units. The span never exceeds maxLayoutDays.
func ComputeLayout(entries []Entry, window Window, today civil.Date, g Granularity) *Layout {
	g = ParseGranularity(string(g))
	layout := &Layout{Granularity: g}
	if len(entries) == 0 {
		layout.Empty = true
		return layout
	}
	window = window.normalized()

	layout.Start, layout.End = bounds(entries, window, today, g)
	if layout.End.DaysSince(layout.Start) >= maxLayoutDays {
		// Open-ended windows over far-apart tasks.
		layout.End = layout.Start.AddDays(maxLayoutDays - 1)
	}
	layout.PxPerDay = g.pxPerDay()
	days := layout.End.DaysSince(layout.Start) + 1
	layout.Width = days * layout.PxPerDay
	layout.Height = len(entries) * RowHeight
	layout.Columns = columns(layout.Start, layout.End, g, layout.PxPerDay)

	layout.Bars = make([]Bar, len(entries))
	for i, e := range entries {
		bar := Bar{Entry: e, Y: i * RowHeight}
		if e.HasBar {
			start := clampTo(e.Start, layout.Start, layout.End)
			end := clampTo(e.End, layout.Start, layout.End)
			bar.Visible = true
			bar.X = layout.x(start)
			bar.Width = (end.DaysSince(start) + 1) * layout.PxPerDay
			if !e.Header() {
				bar.ProgressWidth = bar.Width * e.Progress / 100
			}
		}
		layout.Bars[i] = bar
	}

	if layout.Contains(today) {
		layout.Today = &Marker{Date: today, X: layout.x(today) + layout.PxPerDay/2}
	}

	if target := scrollTarget(entries, today); target != nil && layout.Contains(*target) {
		layout.ScrollTarget = target
		layout.ScrollX = max(0, layout.x(*target)-2*layout.PxPerDay)
	}
	return layout
}

// Contains reports whether d falls inside the chart bounds.
func (l *Layout) Contains(d civil.Date) bool {
	if l.Empty || !d.IsValid() {
		return false
	}
	return !d.Before(l.Start) && !d.After(l.End)
}

// DateAt converts a horizontal offset back to a date, clamped to the bounds.
func (l *Layout) DateAt(x int) civil.Date {
	if l.PxPerDay == 0 {
		return l.Start
	}
	return clampTo(l.Start.AddDays(x/l.PxPerDay), l.Start, l.End)
}

func (l *Layout) x(d civil.Date) int {
	return d.DaysSince(l.Start) * l.PxPerDay
}

func bounds(entries []Entry, window Window, today civil.Date, g Granularity) (civil.Date, civil.Date) {
	if window.Bounded() {
		return *window.From, *window.To
	}

	var (
		lo, hi civil.Date
		found  bool
	)
	for _, e := range entries {
		if e.Header() || !e.HasBar {
			continue
		}
		if !found {
			lo, hi, found = e.Start, e.End, true
			continue
		}
		lo, hi = minDate(lo, e.Start), maxDate(hi, e.End)
	}
	if !found {
		// Only headers or undated tasks: fall back to the header anchor.
		for _, e := range entries {
			if e.HasBar {
				lo, hi, found = e.Start, e.End, true
				break
			}
		}
	}
	if !found {
		lo, hi = window.Clamp(today), window.Clamp(today)
	}
	if window.From != nil {
		lo = *window.From
		hi = maxDate(hi, lo)
	}
	if window.To != nil {
		hi = *window.To
		lo = minDate(lo, hi)
	}
	return padStart(lo, g), padEnd(hi, g)
}

func padStart(d civil.Date, g Granularity) civil.Date {
	switch g {
	case GranularityWeek:
		// Weeks start on Monday.
		offset := (int(d.In(time.UTC).Weekday()) + 6) % 7
		return d.AddDays(-offset)
	case GranularityMonth:
		return civil.Date{Year: d.Year, Month: d.Month, Day: 1}
	default:
		return d
	}
}

func padEnd(d civil.Date, g Granularity) civil.Date {
	switch g {
	case GranularityWeek:
		return padStart(d, g).AddDays(6)
	case GranularityMonth:
		return firstOfNextMonth(d).AddDays(-1)
	default:
		return d
	}
}

func firstOfNextMonth(d civil.Date) civil.Date {
	if d.Month == time.December {
		return civil.Date{Year: d.Year + 1, Month: time.January, Day: 1}
	}
	return civil.Date{Year: d.Year, Month: d.Month + 1, Day: 1}
}

func columns(start, end civil.Date, g Granularity, px int) []Column {
	var cols []Column
	for cur := start; !cur.After(end); {
		var next civil.Date
		var label string
		switch g {
		case GranularityDay:
			next = cur.AddDays(1)
			label = fmt.Sprintf("%s %d", cur.Month.String()[:3], cur.Day)
		case GranularityMonth:
			next = firstOfNextMonth(cur)
			label = fmt.Sprintf("%s %d", cur.Month.String()[:3], cur.Year)
		default:
			next = padStart(cur, g).AddDays(7)
			label = fmt.Sprintf("%s %d", cur.Month.String()[:3], cur.Day)
		}
		last := minDate(next.AddDays(-1), end)
		cols = append(cols, Column{
			Label: label,
			Start: cur,
			X:     cur.DaysSince(start) * px,
			Width: (last.DaysSince(cur) + 1) * px,
		})
		cur = next
	}
	return cols
}

// scrollTarget is the earliest task start, or today when no task has one.
func scrollTarget(entries []Entry, today civil.Date) *civil.Date {
	var earliest *civil.Date
	for _, e := range entries {
		if e.Header() || !e.HasBar || !e.Start.IsValid() {
			continue
		}
		if earliest == nil || e.Start.Before(*earliest) {
			d := e.Start
			earliest = &d
		}
	}
	if earliest != nil {
		return earliest
	}
	if !today.IsValid() {
		return nil
	}
	return &today
}

func clampTo(d, lo, hi civil.Date) civil.Date {
	if d.Before(lo) {
		return lo
	}
	if d.After(hi) {
		return hi
	}
	return d
}
