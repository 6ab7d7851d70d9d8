package timeline

import (
	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

func d(s string) civil.Date {
	date, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return date
}

func dp(s string) *civil.Date {
	date := d(s)
	return &date
}

func window(from, to string) Window {
	var w Window
	if from != "" {
		w.From = dp(from)
	}
	if to != "" {
		w.To = dp(to)
	}
	return w
}

type taskOpt func(*storage.Task)

func task(id string, opts ...taskOpt) *storage.Task {
	t := &storage.Task{
		ID:       id,
		Name:     "Task " + id,
		Status:   types.StatusToDo,
		Priority: types.PriorityMedium,
		Category: string(types.CategoryRoutine),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func assignee(a string) taskOpt { return func(t *storage.Task) { t.Assignee = a } }
func category(c string) taskOpt { return func(t *storage.Task) { t.Category = c } }
func parent(id string) taskOpt  { return func(t *storage.Task) { t.ParentID = &id } }
func deps(ids string) taskOpt   { return func(t *storage.Task) { t.Dependencies = ids } }
func progress(p int) taskOpt    { return func(t *storage.Task) { t.Progress = p } }
func status(s types.Status) taskOpt {
	return func(t *storage.Task) { t.Status = s }
}
func dates(start, end string) taskOpt {
	return func(t *storage.Task) {
		if start != "" {
			t.StartDate = dp(start)
		}
		if end != "" {
			t.EndDate = dp(end)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
