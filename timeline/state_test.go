package timeline

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

func TestViewState_DefaultCollapseOnce(t *testing.T) {
	today := d("2024-01-05")
	state := NewViewState(today)

	// The first build with no rows does not spend the latch.
	if v := state.Build(nil, nil, today); !v.Empty() {
		t.Fatal("Expected empty view")
	}
	if len(state.Collapsed()) != 0 {
		t.Fatal("empty build should not collapse anything")
	}

	tasks := []*storage.Task{
		task("1", assignee("A"), category("routine"), dates("2024-01-04", "2024-01-06")),
		task("2", assignee("A"), category("project"), dates("2024-01-04", "")),
	}
	v := state.Build(tasks, nil, today)
	want := []string{"user:A", "cat:A:routine", "cat:A:project"}
	if got := RowIDs(v.Rows); !equalStrings(got, want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}

	state.Toggle(CategoryKey("A", types.CategoryRoutine))
	v = state.Build(tasks, nil, today)
	want = []string{"user:A", "cat:A:routine", "1", "cat:A:project"}
	if got := RowIDs(v.Rows); !equalStrings(got, want) {
		t.Errorf("rows after expand = %v, want %v", got, want)
	}
}

func TestViewState_View(t *testing.T) {
	today := d("2024-01-05")
	state := NewViewState(today)
	state.SetGranularity(GranularityDay)
	state.SetCategories([]types.Category{types.CategoryRoutine})

	v := state.Build([]*storage.Task{task("1", dates("2024-01-04", "2024-01-06"))}, nil, today)

	if v.Granularity != GranularityDay || v.Layout.PxPerDay != 40 {
		t.Errorf("granularity = %q px %d", v.Granularity, v.Layout.PxPerDay)
	}
	if len(v.Entries) != len(v.Rows) {
		t.Errorf("entries %d != rows %d", len(v.Entries), len(v.Rows))
	}
	active := 0
	for _, c := range v.Categories {
		if c.Active {
			active++
		}
	}
	if active != 1 || len(v.Categories) != len(types.Categories) {
		t.Errorf("category filters = %+v", v.Categories)
	}
	if *v.Window.From != d("2023-12-29") || *v.Window.To != d("2024-04-04") {
		t.Errorf("window = %s..%s", v.Window.From, v.Window.To)
	}
}

func TestViewState_SetWindowSwaps(t *testing.T) {
	state := NewViewState(d("2024-01-05"))
	state.SetWindow(window("2024-02-01", "2024-01-01"))

	w := state.Window()
	if *w.From != d("2024-01-01") || *w.To != d("2024-02-01") {
		t.Errorf("window = %s..%s", w.From, w.To)
	}

	state.ResetWindow(d("2024-01-05"))
	if w := state.Window(); *w.From != d("2023-12-29") {
		t.Errorf("reset window from = %s", w.From)
	}
}

func TestViewState_DefaultCollapseCoversInactiveCategories(t *testing.T) {
	today := d("2024-01-05")
	state := NewViewState(today)
	state.SetCategory(types.CategoryProject, false)

	tasks := []*storage.Task{
		task("1", assignee("A"), category("routine"), dates("2024-01-04", "2024-01-06")),
		task("2", assignee("A"), category("project"), dates("2024-01-04", "")),
	}
	v := state.Build(tasks, nil, today)
	if got, want := RowIDs(v.Rows), []string{"user:A", "cat:A:routine"}; !equalStrings(got, want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}

	state.SetCategory(types.CategoryProject, true)
	v = state.Build(tasks, nil, today)
	if got, want := RowIDs(v.Rows), []string{"user:A", "cat:A:routine", "cat:A:project"}; !equalStrings(got, want) {
		t.Errorf("rows after re-enabling project = %v, want %v", got, want)
	}
}

func TestViewState_SetWindowLimit(t *testing.T) {
	state := NewViewState(d("2024-01-05"))
	before := state.Window()

	tests := []struct {
		name    string
		w       Window
		wantErr bool
	}{
		{"whole calendar", window("0001-01-01", "9999-12-31"), true},
		{"reversed whole calendar", window("9999-12-31", "0001-01-01"), true},
		{"one day over", Window{From: dp("2024-01-01"), To: func() *civil.Date { x := d("2024-01-01").AddDays(MaxWindowDays); return &x }()}, true},
		{"at the limit", Window{From: dp("2024-01-01"), To: func() *civil.Date { x := d("2024-01-01").AddDays(MaxWindowDays - 1); return &x }()}, false},
		{"open ended", window("0001-01-01", ""), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := state.SetWindow(tt.w)
			if tt.wantErr {
				if !errors.Is(err, ErrWindowTooLarge) {
					t.Fatalf("SetWindow() error = %v, want ErrWindowTooLarge", err)
				}
				if w := state.Window(); *w.From != *before.From || *w.To != *before.To {
					t.Errorf("window changed to %s..%s after refusal", w.From, w.To)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetWindow() error = %v", err)
			}
			_ = state.SetWindow(before)
		})
	}
}
