package service

import (
	"errors"
	"testing"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

func TestTaskForm_Task(t *testing.T) {
	form := TaskForm{
		Name:         "  Ship  ",
		StartDate:    "2024-01-02",
		EndDate:      "",
		Status:       "In Progress",
		Assignee:     " alice ",
		ParentID:     " ",
		Dependencies: []string{"a, b", "", "c"},
	}

	task, err := form.Task()
	if err != nil {
		t.Fatalf("Task() failed: %v", err)
	}
	if task.Name != "Ship" || task.Assignee != "alice" {
		t.Errorf("name/assignee = %q/%q, want trimmed", task.Name, task.Assignee)
	}
	if task.StartDate == nil || *task.StartDate != date("2024-01-02") {
		t.Errorf("StartDate = %v, want 2024-01-02", task.StartDate)
	}
	if task.EndDate != nil {
		t.Errorf("EndDate = %v, want nil", task.EndDate)
	}
	if task.ParentID != nil {
		t.Errorf("ParentID = %v, want nil", *task.ParentID)
	}
	if task.Dependencies != "a,b,c" {
		t.Errorf("Dependencies = %q, want a,b,c", task.Dependencies)
	}
}

func TestTaskForm_BadDate(t *testing.T) {
	tests := []struct {
		name string
		form TaskForm
	}{
		{"start", TaskForm{Name: "x", StartDate: "tomorrow"}},
		{"end", TaskForm{Name: "x", EndDate: "2024-13-01"}},
		{"until", TaskForm{Name: "x", Until: "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.form.Task(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Task() error = %v, want ErrInvalidInput", err)
			}
			if _, err := tt.form.Patch(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Patch() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestTaskForm_PatchClears(t *testing.T) {
	patch, err := TaskForm{Name: "x"}.Patch()
	if err != nil {
		t.Fatalf("Patch() failed: %v", err)
	}

	task := &storage.Task{
		StartDate: datePtr("2024-01-01"),
		EndDate:   datePtr("2024-01-02"),
		ParentID:  new(string),
		Status:    types.StatusBlocked,
		Priority:  types.PriorityHigh,
	}
	*task.ParentID = "p"
	patch.Apply(task)

	if task.StartDate != nil || task.EndDate != nil {
		t.Errorf("dates = %v/%v, want cleared", task.StartDate, task.EndDate)
	}
	if task.ParentID != nil {
		t.Errorf("ParentID = %q, want cleared", *task.ParentID)
	}
	if task.Status != types.StatusBlocked || task.Priority != types.PriorityHigh {
		t.Errorf("status/priority = %q/%q, want kept", task.Status, task.Priority)
	}
	if task.Recurrence.Rule != types.RecurrenceNone || task.Recurrence.Interval != 1 {
		t.Errorf("recurrence = %+v, want none/1", task.Recurrence)
	}
}

func TestFormFromTask(t *testing.T) {
	parent := "p1"
	task := &storage.Task{
		Name:         "x",
		EndDate:      datePtr("2024-02-01"),
		ParentID:     &parent,
		Dependencies: "a,b",
	}

	form := FormFromTask(task)
	if form.EndDate != "2024-02-01" || form.StartDate != "" {
		t.Errorf("dates = %q/%q", form.StartDate, form.EndDate)
	}
	if form.ParentID != "p1" || len(form.Dependencies) != 2 {
		t.Errorf("parent/deps = %q/%v", form.ParentID, form.Dependencies)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("start", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty: error = %v, want ErrInvalidInput", err)
	}
	d, err := ParseDate("start", "2024-03-04")
	if err != nil || d != date("2024-03-04") {
		t.Errorf("ParseDate = %v, %v", d, err)
	}
}

func TestValidateLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, MinPageLimit},
		{-3, MinPageLimit},
		{50, 50},
		{MaxPageLimit + 1, MaxPageLimit},
	}
	for _, tt := range tests {
		if got := ValidateLimit(tt.in); got != tt.want {
			t.Errorf("ValidateLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
