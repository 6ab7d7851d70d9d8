package service

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// Validation constants for query parameters
const (
	// MaxPageLimit is the maximum allowed page size to prevent resource exhaustion
	MaxPageLimit = 1000
	// MinPageLimit is the minimum allowed page size
	MinPageLimit = 1
)

// AllowedTaskOrderBy is the whitelist of valid OrderBy values for tasks
var AllowedTaskOrderBy = map[string]bool{
	"":           true, // empty means store order (start date)
	"start_date": true,
	"end_date":   true,
	"name":       true,
	"priority":   true,
	"progress":   true,
	"status":     true,
}

// AllowedOrderDir is the whitelist of valid OrderDir values
var AllowedOrderDir = map[string]bool{
	"":     true, // empty means default direction
	"asc":  true,
	"desc": true,
}

// ValidateOrderBy validates an OrderBy value against the allowed whitelist.
// Returns the validated value or an empty string if invalid.
func ValidateOrderBy(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}
	return ""
}

// ValidateOrderDir validates an OrderDir value.
// Returns the validated value or an empty string if invalid.
func ValidateOrderDir(value string) string {
	if AllowedOrderDir[value] {
		return value
	}
	return ""
}

// ValidateLimit ensures limit is within acceptable bounds.
func ValidateLimit(limit int) int {
	if limit < MinPageLimit {
		return MinPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// ValidateOffset ensures offset is non-negative.
func ValidateOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// TaskListParams filters and pages the task list.
type TaskListParams struct {
	Status   string
	Assignee string
	Category string
	Search   string
	OrderBy  string
	OrderDir string
	Limit    int
	Offset   int
}

// TaskList is one page of tasks.
type TaskList struct {
	Tasks      []*TaskSummary `json:"tasks"`
	TotalCount int            `json:"total_count"`
	HasMore    bool           `json:"has_more"`
}

// TaskSummary is a task row decorated for display.
type TaskSummary struct {
	*storage.Task
	ParentName      string         `json:"parent_name,omitempty"`
	WorkCategory    types.Category `json:"work_category"`
	Overdue         bool           `json:"overdue"`
	DependencyCount int            `json:"dependency_count"`
}

// TaskDetail is a task with its neighbourhood.
type TaskDetail struct {
	Task         *storage.Task   `json:"task"`
	Parent       *storage.Task   `json:"parent,omitempty"`
	Children     []*storage.Task `json:"children"`
	Dependencies []*storage.Task `json:"dependencies"`
	Overdue      bool            `json:"overdue"`
}

// TaskForm is the editable shape of a task as it arrives from a form or a
// JSON body. Dates use the YYYY-MM-DD layout; an empty date means none.
type TaskForm struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority"`
	Progress     int      `json:"progress"`
	Assignee     string   `json:"assignee"`
	ParentID     string   `json:"parent_id"`
	Category     string   `json:"category"`
	Recurrence   string   `json:"recurrence"`
	Interval     int      `json:"recurrence_interval"`
	Until        string   `json:"recurrence_until"`
	Dependencies []string `json:"dependencies"`
}

// FormFromTask fills a form from a stored task.
func FormFromTask(t *storage.Task) TaskForm {
	form := TaskForm{
		Name:         t.Name,
		Description:  t.Description,
		StartDate:    formatDate(t.StartDate),
		EndDate:      formatDate(t.EndDate),
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		Progress:     t.Progress,
		Assignee:     t.Assignee,
		ParentID:     t.Parent(),
		Category:     t.Category,
		Recurrence:   string(t.Recurrence.Rule),
		Interval:     t.Recurrence.Interval,
		Until:        formatDate(t.Recurrence.Until),
		Dependencies: t.DependencyIDs(),
	}
	return form
}

// Task converts the form into a new task.
func (f TaskForm) Task() (*storage.Task, error) {
	start, err := parseOptionalDate("start date", f.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate("end date", f.EndDate)
	if err != nil {
		return nil, err
	}
	until, err := parseOptionalDate("recurrence end", f.Until)
	if err != nil {
		return nil, err
	}

	task := &storage.Task{
		Name:        strings.TrimSpace(f.Name),
		Description: f.Description,
		StartDate:   start,
		EndDate:     end,
		Status:      types.Status(f.Status),
		Priority:    types.Priority(f.Priority),
		Progress:    f.Progress,
		Assignee:    strings.TrimSpace(f.Assignee),
		Category:    strings.TrimSpace(f.Category),
		Recurrence: storage.Recurrence{
			Rule:     types.RecurrenceRule(f.Recurrence),
			Interval: f.Interval,
			Until:    until,
		},
		Dependencies: joinDependencies(f.Dependencies),
	}
	if parent := strings.TrimSpace(f.ParentID); parent != "" {
		task.ParentID = &parent
	}
	return task, nil
}

// Patch converts the form into a full update: every field is written, empty
// dates and parent clear the column.
func (f TaskForm) Patch() (*storage.TaskPatch, error) {
	task, err := f.Task()
	if err != nil {
		return nil, err
	}

	var zero civil.Date
	start, end := &zero, &zero
	if task.StartDate != nil {
		start = task.StartDate
	}
	if task.EndDate != nil {
		end = task.EndDate
	}
	parent := task.Parent()
	recurrence := task.Recurrence
	if recurrence.Rule == "" {
		recurrence.Rule = types.RecurrenceNone
	}
	if recurrence.Interval < 1 {
		recurrence.Interval = 1
	}

	return &storage.TaskPatch{
		Name:         &task.Name,
		Description:  &task.Description,
		StartDate:    start,
		EndDate:      end,
		Status:       optional(task.Status),
		Priority:     optional(task.Priority),
		Progress:     &task.Progress,
		Assignee:     &task.Assignee,
		ParentID:     &parent,
		Category:     &task.Category,
		Recurrence:   &recurrence,
		Dependencies: &task.Dependencies,
	}, nil
}

// optional returns nil for the zero value so an omitted select keeps the
// stored value.
func optional[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

func parseOptionalDate(field, s string) (*civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a date", ErrInvalidInput, field, s)
	}
	return &d, nil
}

// ParseDate parses a required YYYY-MM-DD date.
func ParseDate(field, s string) (civil.Date, error) {
	d, err := parseOptionalDate(field, s)
	if err != nil {
		return civil.Date{}, err
	}
	if d == nil {
		return civil.Date{}, fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	return *d, nil
}

func formatDate(d *civil.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func joinDependencies(ids []string) string {
	var kept []string
	for _, id := range ids {
		kept = append(kept, storage.SplitDependencies(id)...)
	}
	return strings.Join(kept, ",")
}

// TaskPatchForm is a partial update as it arrives in a JSON body. Absent
// fields are left alone; an empty date or parent clears the column.
type TaskPatchForm struct {
	Name         *string   `json:"name"`
	Description  *string   `json:"description"`
	StartDate    *string   `json:"start_date"`
	EndDate      *string   `json:"end_date"`
	Status       *string   `json:"status"`
	Priority     *string   `json:"priority"`
	Progress     *int      `json:"progress"`
	Assignee     *string   `json:"assignee"`
	ParentID     *string   `json:"parent_id"`
	Category     *string   `json:"category"`
	Dependencies *[]string `json:"dependencies"`
}

// Patch converts the form into a storage patch.
func (f TaskPatchForm) Patch() (*storage.TaskPatch, error) {
	patch := &storage.TaskPatch{
		Name:        f.Name,
		Description: f.Description,
		Progress:    f.Progress,
		Assignee:    f.Assignee,
		Category:    f.Category,
	}
	for _, d := range []struct {
		field string
		in    *string
		out   **civil.Date
	}{
		{"start date", f.StartDate, &patch.StartDate},
		{"end date", f.EndDate, &patch.EndDate},
	} {
		if d.in == nil {
			continue
		}
		parsed, err := parseOptionalDate(d.field, *d.in)
		if err != nil {
			return nil, err
		}
		if parsed == nil {
			parsed = &civil.Date{}
		}
		*d.out = parsed
	}
	if f.Status != nil {
		status := types.Status(*f.Status)
		patch.Status = &status
	}
	if f.Priority != nil {
		priority := types.Priority(*f.Priority)
		patch.Priority = &priority
	}
	if f.ParentID != nil {
		parent := strings.TrimSpace(*f.ParentID)
		patch.ParentID = &parent
	}
	if f.Dependencies != nil {
		deps := joinDependencies(*f.Dependencies)
		patch.Dependencies = &deps
	}
	return patch, nil
}
