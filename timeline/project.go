package timeline

import (
	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/types"
)

// Style classes attached to chart entries.
const (
	ClassHeader     = "bar-header"
	ClassToDo       = "bar-todo"
	ClassInProgress = "bar-in-progress"
	ClassBlocked    = "bar-blocked"
	ClassNeedHelp   = "bar-need-help"
	ClassDone       = "bar-done"
)

// StatusClass returns the style class for a task status.
func StatusClass(status types.Status) string {
	switch status {
	case types.StatusInProgress:
		return ClassInProgress
	case types.StatusBlocked:
		return ClassBlocked
	case types.StatusNeedHelp:
		return ClassNeedHelp
	case types.StatusDone:
		return ClassDone
	default:
		return ClassToDo
	}
}

// Entry is one chart slot. Entries line up one to one with rows.
type Entry struct {
	Key  RowKey `json:"key"`
	ID   string `json:"id"`
	Name string `json:"name"`

	// HasBar is false for tasks without any date; the slot is kept so the
	// chart stays aligned with the tree.
	HasBar bool       `json:"has_bar"`
	Start  civil.Date `json:"start"`
	End    civil.Date `json:"end"`

	Progress     int      `json:"progress"`
	Dependencies []string `json:"dependencies,omitempty"`
	Class        string   `json:"class"`
}

// Header reports whether the entry reserves a header row.
func (e Entry) Header() bool {
	return e.Key.Kind != KindTask
}

// Project maps rows onto chart entries.
//
// Task bars are clamped to the window; a task with a single date becomes a
// one-day bar. Header rows get a one-day bar anchored at window.From, or
// today when the window has no start. Dependencies are kept only when they
// point at another emitted task row.
func Project(rows []Row, window Window, today civil.Date) []Entry {
	if len(rows) == 0 {
		return nil
	}
	window = window.normalized()

	anchor := today
	if window.From != nil {
		anchor = *window.From
	}

	emitted := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.Key.Kind == KindTask {
			emitted[r.Key.TaskID] = true
		}
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entry := Entry{
			Key:  r.Key,
			ID:   r.Key.String(),
			Name: r.Label,
		}

		if r.Header() || r.Task == nil {
			entry.HasBar = true
			entry.Start, entry.End = anchor, anchor
			entry.Class = ClassHeader
			entries = append(entries, entry)
			continue
		}

		task := r.Task
		entry.Progress = types.ClampProgress(task.Progress)
		entry.Class = StatusClass(task.Status)
		if s, e, ok := span(task.StartDate, task.EndDate); ok {
			entry.HasBar = true
			entry.Start, entry.End = window.Clamp(s), window.Clamp(e)
		}
		for _, dep := range task.DependencyIDs() {
			if dep != task.ID && emitted[dep] {
				entry.Dependencies = append(entry.Dependencies, dep)
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
