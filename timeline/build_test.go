package timeline

import (
	"fmt"
	"testing"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

func TestBuild_WindowScenario(t *testing.T) {
	tasks := []*storage.Task{
		task("1", assignee("A"), category("routine"), dates("2024-01-01", "2024-01-05")),
		task("2", assignee("A"), category("strategic"), dates("2024-02-01", "2024-02-03")),
	}

	rows := Build(Input{Tasks: tasks, Window: window("2024-01-01", "2024-01-10")})

	want := []string{"user:A", "cat:A:routine", "1"}
	if got := RowIDs(rows); !equalStrings(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestBuild_Empty(t *testing.T) {
	rows := Build(Input{Window: DefaultWindow(d("2024-01-01"))})
	if len(rows) != 0 {
		t.Fatalf("Expected no rows, got %v", RowIDs(rows))
	}
	if entries := Project(rows, Window{}, d("2024-01-01")); entries != nil {
		t.Errorf("Expected no entries, got %v", entries)
	}
}

func TestBuild_Grouping(t *testing.T) {
	tasks := []*storage.Task{
		task("1", assignee("bob"), category("support")),
		task("2", assignee("Ann"), category("weird")),
		task("3", category("routine")),
		task("4", assignee("Ann"), category("routine")),
		task("5", assignee("ann@example.com"), category("")),
		task("6", assignee("  Carl "), category("strategic")),
	}
	profiles := []*storage.Profile{
		{ID: "p1", Email: "ann@example.com", DisplayName: "Ann"},
		{ID: "p2", Email: "bob@example.com", DisplayName: "Bob"},
	}

	rows := Build(Input{Tasks: tasks, Profiles: profiles})

	want := []string{
		"user:Ann", "cat:Ann:routine", "4", "cat:Ann:other", "2", "5",
		"user:Bob", "cat:Bob:support", "1",
		"user:Carl", "cat:Carl:strategic", "6",
		"user:Unassigned", "cat:Unassigned:routine", "3",
	}
	if got := RowIDs(rows); !equalStrings(got, want) {
		t.Errorf("rows =\n%v\nwant\n%v", got, want)
	}

	if rows[0].Depth != 0 || rows[1].Depth != 1 || rows[2].Depth != 2 {
		t.Errorf("unexpected depths %d %d %d", rows[0].Depth, rows[1].Depth, rows[2].Depth)
	}
	if rows[1].Label != types.CategoryRoutine.Label() {
		t.Errorf("category label = %q", rows[1].Label)
	}
}

func TestBuild_CategoryFilter(t *testing.T) {
	tasks := []*storage.Task{
		task("1", assignee("A"), category("routine")),
		task("2", assignee("A"), category("project")),
		task("3", assignee("B"), category("project")),
	}

	rows := Build(Input{
		Tasks:      tasks,
		Categories: map[types.Category]bool{types.CategoryRoutine: true},
	})

	// B has no task in an active category, so B disappears too.
	want := []string{"user:A", "cat:A:routine", "1"}
	if got := RowIDs(rows); !equalStrings(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestBuild_Tree(t *testing.T) {
	tasks := []*storage.Task{
		task("c1", assignee("A"), parent("root")),
		task("root", assignee("A")),
		task("gc", assignee("A"), parent("c1")),
		task("c2", assignee("A"), parent("root")),
		task("orphan", assignee("A"), parent("missing")),
		task("elsewhere", assignee("A"), parent("root"), category("project")),
	}

	rows := Build(Input{Tasks: tasks})

	want := []string{
		"user:A",
		"cat:A:routine", "root", "c1", "gc", "c2", "orphan",
		"cat:A:project", "elsewhere",
	}
	if got := RowIDs(rows); !equalStrings(got, want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}

	depth := map[string]int{}
	children := map[string]bool{}
	for _, r := range rows {
		depth[r.Key.String()] = r.Depth
		children[r.Key.String()] = r.HasChildren
	}
	if depth["root"] != 2 || depth["c1"] != 3 || depth["gc"] != 4 || depth["orphan"] != 2 {
		t.Errorf("unexpected depths %v", depth)
	}
	if !children["root"] || !children["c1"] || children["gc"] || children["elsewhere"] {
		t.Errorf("unexpected HasChildren %v", children)
	}
}

func TestBuild_CollapsedTaskKeepsHasChildren(t *testing.T) {
	tasks := []*storage.Task{
		task("root", assignee("A")),
		task("child", assignee("A"), parent("root")),
		task("grandchild", assignee("A"), parent("child")),
	}

	rows := Build(Input{Tasks: tasks, Collapsed: NewCollapseSet(TaskKey("root"))})

	want := []string{"user:A", "cat:A:routine", "root"}
	if got := RowIDs(rows); !equalStrings(got, want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}
	if !rows[2].HasChildren || !rows[2].Collapsed {
		t.Errorf("collapsed root should report children: %+v", rows[2])
	}
}

func TestBuild_Cycles(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*storage.Task
		want  []string
	}{
		{
			name:  "self parent",
			tasks: []*storage.Task{task("a", parent("a"))},
			want:  []string{"a"},
		},
		{
			name: "two cycle",
			tasks: []*storage.Task{
				task("a", parent("b")),
				task("b", parent("a")),
			},
			want: []string{"a", "b"},
		},
		{
			name: "three cycle with tail",
			tasks: []*storage.Task{
				task("x"),
				task("c", parent("b")),
				task("b", parent("a")),
				task("tail", parent("b")),
				task("a", parent("c")),
			},
			want: []string{"x", "c", "a", "b", "tail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Build(Input{Tasks: tt.tasks})

			var got []string
			for _, r := range rows {
				if r.Key.Kind == KindTask {
					got = append(got, r.Key.TaskID)
				}
			}
			if !equalStrings(got, tt.want) {
				t.Errorf("task rows = %v, want %v", got, tt.want)
			}
		})
	}
}

// headerKeys returns every assignee and category key of an uncollapsed build.
func headerKeys(rows []Row) []RowKey {
	var keys []RowKey
	for _, r := range rows {
		if r.Header() {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

func sampleTasks() []*storage.Task {
	return []*storage.Task{
		task("1", assignee("A"), category("routine"), dates("2024-01-02", "2024-01-04")),
		task("2", assignee("A"), category("routine"), parent("1"), dates("2024-01-03", "")),
		task("3", assignee("A"), category("project"), dates("", "2024-01-08")),
		task("4", assignee("B"), category("project")),
		task("5", assignee("B"), category("project"), parent("4"), deps("1,4,missing")),
		task("6", category("support"), dates("2024-01-01", "2024-01-20")),
		task("7", assignee("B"), category("project"), parent("5")),
	}
}

func TestBuild_CollapsedHeaderHidesDescendants(t *testing.T) {
	tasks := sampleTasks()
	all := Build(Input{Tasks: tasks})
	headers := headerKeys(all)

	// Try every subset of collapsed headers.
	for mask := 0; mask < 1<<len(headers); mask++ {
		collapsed := NewCollapseSet()
		for i, k := range headers {
			if mask&(1<<i) != 0 {
				collapsed[k] = struct{}{}
			}
		}

		rows := Build(Input{Tasks: tasks, Collapsed: collapsed})

		var current RowKey
		var hiddenUser, hiddenCat bool
		for _, r := range rows {
			switch r.Key.Kind {
			case KindAssignee:
				current = r.Key
				hiddenUser = collapsed.Has(r.Key)
				hiddenCat = false
			case KindCategory:
				if hiddenUser {
					t.Fatalf("mask %b: category %v shown under collapsed %v", mask, r.Key, current)
				}
				hiddenCat = collapsed.Has(r.Key)
			case KindTask:
				if hiddenUser || hiddenCat {
					t.Fatalf("mask %b: task %v shown under a collapsed header", mask, r.Key)
				}
			}
		}
	}
}

func TestBuild_RowOrderMatchesEntries(t *testing.T) {
	tasks := sampleTasks()
	all := Build(Input{Tasks: tasks})
	today := d("2024-01-05")

	for i, k := range append(headerKeys(all), TaskKey("1"), TaskKey("4")) {
		for _, w := range []Window{{}, window("2024-01-01", "2024-01-05")} {
			t.Run(fmt.Sprintf("%d/%v", i, w.Bounded()), func(t *testing.T) {
				rows := Build(Input{Tasks: tasks, Window: w, Collapsed: NewCollapseSet(k)})
				entries := Project(rows, w, today)

				ids := make([]string, len(entries))
				for j, e := range entries {
					ids[j] = e.ID
				}
				if !equalStrings(RowIDs(rows), ids) {
					t.Errorf("rows %v != entries %v", RowIDs(rows), ids)
				}
			})
		}
	}
}

func TestBuild_CategoryToggleRestoresRows(t *testing.T) {
	tasks := sampleTasks()
	state := NewViewState(d("2024-01-05"))
	state.SetWindow(Window{})

	first := state.Build(tasks, nil, d("2024-01-05"))

	// Expand everything the default collapse closed, then collapse one task.
	for _, r := range first.Rows {
		if r.Collapsed {
			state.Toggle(r.Key)
		}
	}
	state.Toggle(TaskKey("4"))
	before := RowIDs(state.Build(tasks, nil, d("2024-01-05")).Rows)

	state.SetCategory(types.CategoryProject, false)
	during := RowIDs(state.Build(tasks, nil, d("2024-01-05")).Rows)
	for _, id := range during {
		if id == "3" || id == "4" || id == "5" || id == "7" {
			t.Errorf("project task %s still shown while filtered", id)
		}
	}

	state.SetCategory(types.CategoryProject, true)
	after := RowIDs(state.Build(tasks, nil, d("2024-01-05")).Rows)

	if !equalStrings(before, after) {
		t.Errorf("rows after toggle = %v, want %v", after, before)
	}
}
