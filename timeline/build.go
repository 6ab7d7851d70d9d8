package timeline

import (
	"sort"
	"strings"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// CollapseSet holds the collapsed rows. The zero value is not usable; use
// NewCollapseSet.
type CollapseSet map[RowKey]struct{}

// NewCollapseSet returns a set holding keys.
func NewCollapseSet(keys ...RowKey) CollapseSet {
	s := make(CollapseSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether key is collapsed. A nil set has nothing collapsed.
func (s CollapseSet) Has(key RowKey) bool {
	_, ok := s[key]
	return ok
}

// Toggle flips key and reports whether it is now collapsed.
func (s CollapseSet) Toggle(key RowKey) bool {
	if s.Has(key) {
		delete(s, key)
		return false
	}
	s[key] = struct{}{}
	return true
}

// Clone returns a copy of the set.
func (s CollapseSet) Clone() CollapseSet {
	c := make(CollapseSet, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// Input is everything a build depends on.
type Input struct {
	Tasks []*storage.Task

	// Profiles resolve assignee labels to display names.
	Profiles []*storage.Profile

	Window    Window
	Collapsed CollapseSet

	// Categories lists the active work categories. Nil means all.
	Categories map[types.Category]bool
}

// Build flattens tasks into display rows.
//
// Tasks outside the window or in an inactive category are dropped. The rest
// are grouped by assignee (sorted by label), then by category (in
// types.Categories order), then laid out depth first along parent links
// inside their category. A row is emitted only when none of its ancestors is
// collapsed.
func Build(in Input) []Row {
	resolve := newAssigneeResolver(in.Profiles)

	buckets := make(map[string]map[types.Category][]*storage.Task)
	for _, task := range in.Tasks {
		if task == nil {
			continue
		}
		if !in.Window.Intersects(task.StartDate, task.EndDate) {
			continue
		}
		category := task.WorkCategory()
		if in.Categories != nil && !in.Categories[category] {
			continue
		}
		assignee := resolve.label(task.Assignee)
		if buckets[assignee] == nil {
			buckets[assignee] = make(map[types.Category][]*storage.Task)
		}
		buckets[assignee][category] = append(buckets[assignee][category], task)
	}

	assignees := make([]string, 0, len(buckets))
	for a := range buckets {
		assignees = append(assignees, a)
	}
	sort.Slice(assignees, func(i, j int) bool {
		return lessLabel(assignees[i], assignees[j])
	})

	var rows []Row
	for _, assignee := range assignees {
		userKey := AssigneeKey(assignee)
		userCollapsed := in.Collapsed.Has(userKey)
		rows = append(rows, Row{
			Key:         userKey,
			Label:       assignee,
			Depth:       0,
			HasChildren: true,
			Collapsed:   userCollapsed,
		})
		if userCollapsed {
			continue
		}

		for _, category := range types.Categories {
			tasks := buckets[assignee][category]
			if len(tasks) == 0 {
				continue
			}
			catKey := CategoryKey(assignee, category)
			catCollapsed := in.Collapsed.Has(catKey)
			rows = append(rows, Row{
				Key:         catKey,
				Label:       category.Label(),
				Depth:       1,
				HasChildren: true,
				Collapsed:   catCollapsed,
			})
			if catCollapsed {
				continue
			}
			rows = flattenTree(rows, tasks, in.Collapsed)
		}
	}
	return rows
}

// flattenTree appends the task rows of one category bucket.
//
// Roots are tasks whose parent is missing from the bucket or is the task
// itself. Tasks never reached from a root sit on a parent cycle; each is
// promoted to a root in input order so every task in the bucket appears
// exactly once.
func flattenTree(rows []Row, tasks []*storage.Task, collapsed CollapseSet) []Row {
	inBucket := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		inBucket[t.ID] = true
	}

	children := make(map[string][]*storage.Task)
	var roots []*storage.Task
	for _, t := range tasks {
		parent := t.Parent()
		if parent == "" || parent == t.ID || !inBucket[parent] {
			roots = append(roots, t)
			continue
		}
		children[parent] = append(children[parent], t)
	}

	visited := make(map[string]bool, len(tasks))

	var walk func(t *storage.Task, depth int, hidden bool)
	walk = func(t *storage.Task, depth int, hidden bool) {
		if visited[t.ID] {
			return
		}
		visited[t.ID] = true

		key := TaskKey(t.ID)
		isCollapsed := collapsed.Has(key)

		// A child already visited closes a cycle and is not shown here.
		var kids []*storage.Task
		for _, child := range children[t.ID] {
			if !visited[child.ID] {
				kids = append(kids, child)
			}
		}

		if !hidden {
			rows = append(rows, Row{
				Key:         key,
				Label:       t.Name,
				Depth:       depth,
				HasChildren: len(kids) > 0,
				Collapsed:   isCollapsed,
				Task:        t,
			})
		}
		// Descend even when hidden so every task is marked visited.
		for _, child := range kids {
			walk(child, depth+1, hidden || isCollapsed)
		}
	}

	for _, root := range roots {
		walk(root, 2, false)
	}
	for _, t := range tasks {
		if !visited[t.ID] {
			walk(t, 2, false)
		}
	}
	return rows
}

// lessLabel orders labels case-insensitively.
func lessLabel(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// assigneeResolver maps free-form assignee labels onto profile display names.
type assigneeResolver struct {
	byKey map[string]string
}

func newAssigneeResolver(profiles []*storage.Profile) assigneeResolver {
	r := assigneeResolver{byKey: make(map[string]string, 2*len(profiles))}
	for _, p := range profiles {
		if p == nil {
			continue
		}
		name := strings.TrimSpace(p.DisplayName)
		if name == "" {
			name = strings.TrimSpace(p.Email)
		}
		if name == "" {
			continue
		}
		for _, k := range []string{p.DisplayName, p.Email} {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				if _, taken := r.byKey[k]; !taken {
					r.byKey[k] = name
				}
			}
		}
	}
	return r
}

func (r assigneeResolver) label(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Unassigned
	}
	if name, ok := r.byKey[strings.ToLower(trimmed)]; ok {
		return name
	}
	return trimmed
}
