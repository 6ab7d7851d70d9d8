// Package types holds the task vocabulary shared by every taskpg package:
// statuses, priorities, work categories, roles and the rules that tie
// status and progress together.
package types

import "strings"

// Status is the workflow state of a task.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusBlocked    Status = "Blocked"
	StatusNeedHelp   Status = "Need help"
	StatusDone       Status = "Done"
)

// Statuses lists every status in board column order.
var Statuses = []Status{
	StatusToDo,
	StatusInProgress,
	StatusBlocked,
	StatusNeedHelp,
	StatusDone,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// String returns the status label.
func (s Status) String() string {
	return string(s)
}

// Stalled reports whether the status is exempt from progress coupling.
func (s Status) Stalled() bool {
	return s == StatusBlocked || s == StatusNeedHelp
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Category is the work category a task is filed under.
type Category string

const (
	CategoryRoutine   Category = "routine"
	CategoryStrategic Category = "strategic"
	CategoryProject   Category = "project"
	CategorySupport   Category = "support"
	CategoryOther     Category = "other"
)

// Categories lists every category in display order. CategoryOther is the
// catch-all and always comes last.
var Categories = []Category{
	CategoryRoutine,
	CategoryStrategic,
	CategoryProject,
	CategorySupport,
	CategoryOther,
}

// NormalizeCategory maps a stored category value onto the fixed set.
// Unknown and empty values map to CategoryOther.
func NormalizeCategory(raw string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return CategoryOther
}

// Label returns the human readable category name.
func (c Category) Label() string {
	switch c {
	case CategoryRoutine:
		return "Routine"
	case CategoryStrategic:
		return "Strategic"
	case CategoryProject:
		return "Project"
	case CategorySupport:
		return "Support"
	default:
		return "Other"
	}
}

// Role is the access level of a profile.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleUser
}

// RecurrenceRule says how often a task repeats.
type RecurrenceRule string

const (
	RecurrenceNone    RecurrenceRule = "none"
	RecurrenceDaily   RecurrenceRule = "daily"
	RecurrenceWeekly  RecurrenceRule = "weekly"
	RecurrenceMonthly RecurrenceRule = "monthly"
)

// Valid reports whether r is a known recurrence rule.
func (r RecurrenceRule) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// ClampProgress bounds p to 0..100.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Reconcile applies the status/progress coupling after a change.
//
// Progress 0 pairs with To Do and 100 with Done. Blocked and Need help are
// never rewritten. When both values were changed together an explicit To Do
// or Done status wins over the progress value.
func Reconcile(status Status, progress int, statusChanged, progressChanged bool) (Status, int) {
	progress = ClampProgress(progress)
	if status.Stalled() {
		return status, progress
	}

	if statusChanged {
		switch status {
		case StatusDone:
			return status, 100
		case StatusToDo:
			return status, 0
		}
		if !progressChanged {
			return status, progress
		}
	}

	if progressChanged || !statusChanged {
		switch {
		case progress == 100:
			return StatusDone, progress
		case progress == 0:
			return StatusToDo, progress
		case status == StatusToDo || status == StatusDone:
			return StatusInProgress, progress
		}
	}
	return status, progress
}
