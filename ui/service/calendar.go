package service

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/storage"
)

// CalendarDay is one cell of the month grid.
type CalendarDay struct {
	Date    civil.Date      `json:"date"`
	InMonth bool            `json:"in_month"`
	Today   bool            `json:"today"`
	Tasks   []*storage.Task `json:"tasks"`
}

// CalendarMonth is a Monday-first month grid padded to whole weeks.
type CalendarMonth struct {
	Year  int              `json:"year"`
	Month time.Month       `json:"month"`
	Title string           `json:"title"`
	Prev  civil.Date       `json:"prev"`
	Next  civil.Date       `json:"next"`
	Weeks [][]*CalendarDay `json:"weeks"`

	// Undated counts tasks with no date that cannot be placed.
	Undated int `json:"undated"`
}

// GetCalendar builds the grid for the month containing day. A task appears
// on every day its [start, end] span covers; a task with one date appears on
// that date only.
func (s *Service[TTx]) GetCalendar(ctx context.Context, day civil.Date) (*CalendarMonth, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	return buildCalendar(tasks, day, s.Today()), nil
}

func buildCalendar(tasks []*storage.Task, day, today civil.Date) *CalendarMonth {
	first := civil.Date{Year: day.Year, Month: day.Month, Day: 1}
	next := first.AddMonths(1)
	last := next.AddDays(-1)

	gridStart := first.AddDays(-mondayOffset(first))
	gridEnd := last.AddDays(6 - mondayOffset(last))

	cal := &CalendarMonth{
		Year:  first.Year,
		Month: first.Month,
		Title: first.In(time.UTC).Format("January 2006"),
		Prev:  first.AddMonths(-1),
		Next:  next,
	}

	cells := make(map[civil.Date]*CalendarDay)
	var week []*CalendarDay
	for d := gridStart; !d.After(gridEnd); d = d.AddDays(1) {
		cell := &CalendarDay{
			Date:    d,
			InMonth: d.Month == first.Month,
			Today:   d == today,
		}
		cells[d] = cell
		week = append(week, cell)
		if len(week) == 7 {
			cal.Weeks = append(cal.Weeks, week)
			week = nil
		}
	}

	for _, t := range tasks {
		start, end, ok := taskSpan(t)
		if !ok {
			cal.Undated++
			continue
		}
		if end.Before(gridStart) || start.After(gridEnd) {
			continue
		}
		if start.Before(gridStart) {
			start = gridStart
		}
		if end.After(gridEnd) {
			end = gridEnd
		}
		for d := start; !d.After(end); d = d.AddDays(1) {
			cells[d].Tasks = append(cells[d].Tasks, t)
		}
	}
	return cal
}

// mondayOffset is the number of days since the Monday starting d's week.
func mondayOffset(d civil.Date) int {
	return (int(d.In(time.UTC).Weekday()) + 6) % 7
}

// taskSpan resolves a task's dates to an ordered interval. Invalid dates
// count as missing.
func taskSpan(t *storage.Task) (civil.Date, civil.Date, bool) {
	start, end := validDate(t.StartDate), validDate(t.EndDate)
	switch {
	case start == nil && end == nil:
		return civil.Date{}, civil.Date{}, false
	case start == nil:
		start = end
	case end == nil:
		end = start
	}
	if end.Before(*start) {
		return *end, *start, true
	}
	return *start, *end, true
}

func validDate(d *civil.Date) *civil.Date {
	if d == nil || !d.IsValid() {
		return nil
	}
	return d
}
