package timeline

import (
	"fmt"
	"strings"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// RowKind discriminates the three kinds of rows.
type RowKind int

const (
	KindAssignee RowKind = iota + 1
	KindCategory
	KindTask
)

func (k RowKind) String() string {
	switch k {
	case KindAssignee:
		return "assignee"
	case KindCategory:
		return "category"
	case KindTask:
		return "task"
	default:
		return fmt.Sprintf("RowKind(%d)", int(k))
	}
}

// Unassigned labels the bucket of tasks without an assignee.
const Unassigned = "Unassigned"

// RowKey identifies a row. Keys of different kinds never compare equal,
// even when a task id happens to look like a header id.
// Keys marshal to their Encode form.
type RowKey struct {
	Kind     RowKind
	Assignee string
	Category types.Category
	TaskID   string
}

// AssigneeKey returns the key of an assignee row.
func AssigneeKey(assignee string) RowKey {
	return RowKey{Kind: KindAssignee, Assignee: assignee}
}

// CategoryKey returns the key of a category row.
func CategoryKey(assignee string, category types.Category) RowKey {
	return RowKey{Kind: KindCategory, Assignee: assignee, Category: category}
}

// TaskKey returns the key of a task row.
func TaskKey(taskID string) RowKey {
	return RowKey{Kind: KindTask, TaskID: taskID}
}

// String returns the display identifier: user:<assignee>,
// cat:<assignee>:<category>, or the task id.
func (k RowKey) String() string {
	switch k.Kind {
	case KindAssignee:
		return "user:" + k.Assignee
	case KindCategory:
		return "cat:" + k.Assignee + ":" + string(k.Category)
	default:
		return k.TaskID
	}
}

// Encode returns an unambiguous text form for forms and query strings.
func (k RowKey) Encode() string {
	if k.Kind == KindTask {
		return "task:" + k.TaskID
	}
	return k.String()
}

// MarshalText implements encoding.TextMarshaler using Encode.
func (k RowKey) MarshalText() ([]byte, error) {
	return []byte(k.Encode()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseRowKey.
func (k *RowKey) UnmarshalText(text []byte) error {
	parsed, err := ParseRowKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseRowKey parses the output of Encode. Category keys split on the last
// colon so assignee labels may contain colons.
func ParseRowKey(s string) (RowKey, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return RowKey{}, fmt.Errorf("timeline: malformed row key %q", s)
	}
	switch kind {
	case "user":
		return AssigneeKey(rest), nil
	case "cat":
		i := strings.LastIndex(rest, ":")
		if i < 0 {
			return RowKey{}, fmt.Errorf("timeline: malformed category key %q", s)
		}
		return CategoryKey(rest[:i], types.Category(rest[i+1:])), nil
	case "task":
		if rest == "" {
			return RowKey{}, fmt.Errorf("timeline: empty task key")
		}
		return TaskKey(rest), nil
	default:
		return RowKey{}, fmt.Errorf("timeline: unknown row kind in %q", s)
	}
}

// Row is one line of the tree panel.
type Row struct {
	Key   RowKey `json:"key"`
	Label string `json:"label"`

	// Depth is 0 for assignees, 1 for categories and 2+ for tasks.
	Depth int `json:"depth"`

	// HasChildren is true when the row has descendants, whether or not they
	// are currently shown.
	HasChildren bool `json:"has_children"`
	Collapsed   bool `json:"collapsed"`

	// Task is set on task rows only.
	Task *storage.Task `json:"task,omitempty"`
}

// Header reports whether the row is an assignee or category row.
func (r Row) Header() bool {
	return r.Key.Kind != KindTask
}

// RowIDs returns the display identifiers of rows in order.
func RowIDs(rows []Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.Key.String()
	}
	return ids
}
