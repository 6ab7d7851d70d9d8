package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/youssefsiam38/taskpg/notifier"
	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/timeline"
	"github.com/youssefsiam38/taskpg/types"
)

// counter counts task_updated events and feed reloads around a call.
type counter struct {
	svc     *Service[*sql.Tx]
	updates int
	start   uint64
}

func watch(t *testing.T, svc *Service[*sql.Tx]) *counter {
	t.Helper()
	c := &counter{svc: svc, start: svc.feed.Begin()}
	unsubscribe := svc.Client().Subscribe(notifier.EventTaskUpdated, func(*notifier.Event) { c.updates++ })
	t.Cleanup(unsubscribe)
	return c
}

// reloads returns the number of reloads issued since watch.
func (c *counter) reloads() uint64 {
	return c.svc.feed.Begin() - c.start - 1
}

func TestTimelineView_DefaultCollapse(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, &storage.Task{Name: "a", StartDate: datePtr("2024-01-10"), Assignee: "alice"})

	view, err := svc.TimelineView(ctx, "u1")
	if err != nil {
		t.Fatalf("TimelineView failed: %v", err)
	}
	want := []string{"user:alice", "cat:alice:routine"}
	if got := timeline.RowIDs(view.Rows); !equalStrings(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}

	svc.ToggleRow("u1", timeline.CategoryKey("alice", types.CategoryRoutine))
	view, err = svc.TimelineView(ctx, "u1")
	if err != nil {
		t.Fatalf("TimelineView failed: %v", err)
	}
	if len(view.Rows) != 3 {
		t.Errorf("rows after expand = %v, want 3 rows", timeline.RowIDs(view.Rows))
	}

	other, err := svc.TimelineView(ctx, "u2")
	if err != nil {
		t.Fatalf("TimelineView failed: %v", err)
	}
	if len(other.Rows) != 2 {
		t.Errorf("another user's rows = %v, want collapsed", timeline.RowIDs(other.Rows))
	}
}

func TestTimelineView_Empty(t *testing.T) {
	svc := newTestService(t)
	view, err := svc.TimelineView(context.Background(), "u1")
	if err != nil {
		t.Fatalf("TimelineView failed: %v", err)
	}
	if !view.Empty() || len(view.Entries) != 0 {
		t.Errorf("view = %d rows, %d entries, want empty", len(view.Rows), len(view.Entries))
	}
}

func TestDragBar_Task(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, &storage.Task{
		Name:      "a",
		StartDate: datePtr("2024-01-10"),
		EndDate:   datePtr("2024-01-12"),
	})

	c := watch(t, svc)
	if _, err := svc.DragBar(ctx, "u1", timeline.TaskKey(task.ID), DragMove, 3); err != nil {
		t.Fatalf("DragBar failed: %v", err)
	}
	if c.updates != 1 {
		t.Errorf("updates = %d, want 1", c.updates)
	}
	if got := c.reloads(); got != 1 {
		t.Errorf("reloads = %d, want 1", got)
	}

	got, err := svc.Client().GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if *got.StartDate != date("2024-01-13") || *got.EndDate != date("2024-01-15") {
		t.Errorf("dates = %v..%v, want 2024-01-13..2024-01-15", got.StartDate, got.EndDate)
	}
}

func TestDragBar_HeaderIsNoop(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, &storage.Task{Name: "a", StartDate: datePtr("2024-01-10"), Assignee: "alice"})

	c := watch(t, svc)
	keys := []timeline.RowKey{
		timeline.AssigneeKey("alice"),
		timeline.CategoryKey("alice", types.CategoryRoutine),
	}
	for _, key := range keys {
		if _, err := svc.DragBar(ctx, "u1", key, DragMove, 5); err != nil {
			t.Fatalf("DragBar(%s) failed: %v", key, err)
		}
		if _, err := svc.SetBarProgress(ctx, "u1", key, 80); err != nil {
			t.Fatalf("SetBarProgress(%s) failed: %v", key, err)
		}
	}
	if c.updates != 0 {
		t.Errorf("updates = %d, want 0", c.updates)
	}

	got, _ := svc.Client().GetTask(ctx, task.ID)
	if *got.StartDate != date("2024-01-10") || got.Progress != 0 {
		t.Errorf("task changed: start %v, progress %d", got.StartDate, got.Progress)
	}
}

func TestRescheduleBar(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, &storage.Task{Name: "a"})

	c := watch(t, svc)
	if _, err := svc.RescheduleBar(ctx, "u1", timeline.TaskKey(task.ID), date("2024-02-10"), date("2024-02-01")); err != nil {
		t.Fatalf("RescheduleBar failed: %v", err)
	}
	if c.updates != 1 || c.reloads() != 1 {
		t.Errorf("updates = %d, reloads = %d, want 1 and 1", c.updates, c.reloads())
	}

	got, _ := svc.Client().GetTask(ctx, task.ID)
	if *got.StartDate != date("2024-02-01") || *got.EndDate != date("2024-02-10") {
		t.Errorf("dates = %v..%v, want swapped", got.StartDate, got.EndDate)
	}

	if _, err := svc.RescheduleBar(ctx, "u1", timeline.TaskKey("missing"), date("2024-02-01"), date("2024-02-02")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing task: error = %v, want ErrNotFound", err)
	}
}

func TestSetBarProgress(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, &storage.Task{Name: "a"})

	if _, err := svc.SetBarProgress(ctx, "u1", timeline.TaskKey(task.ID), 100); err != nil {
		t.Fatalf("SetBarProgress failed: %v", err)
	}
	got, _ := svc.Client().GetTask(ctx, task.ID)
	if got.Progress != 100 || got.Status != types.StatusDone {
		t.Errorf("task = %d%%/%q, want 100%%/Done", got.Progress, got.Status)
	}

	if _, err := svc.SetBarProgress(ctx, "u1", timeline.TaskKey(task.ID), 101); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("out of range: error = %v, want ErrInvalidInput", err)
	}
}

func TestDragPatch(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		edge      DragEdge
		days      int
		wantStart string
		wantEnd   string
	}{
		{"move both", "2024-01-10", "2024-01-12", DragMove, -2, "2024-01-08", "2024-01-10"},
		{"move start only", "2024-01-10", "", DragMove, 1, "2024-01-11", ""},
		{"move end only", "", "2024-01-10", DragMove, 1, "", "2024-01-11"},
		{"start edge", "2024-01-10", "2024-01-12", DragStart, 1, "2024-01-11", ""},
		{"start edge stops at end", "2024-01-10", "2024-01-12", DragStart, 9, "2024-01-12", ""},
		{"end edge stops at start", "2024-01-10", "2024-01-12", DragEnd, -9, "", "2024-01-10"},
		{"end edge without end", "2024-01-10", "", DragEnd, 3, "", ""},
		{"no dates", "", "", DragMove, 3, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &storage.Task{}
			if tt.start != "" {
				task.StartDate = datePtr(tt.start)
			}
			if tt.end != "" {
				task.EndDate = datePtr(tt.end)
			}

			patch := dragPatch(task, tt.edge, tt.days)
			if got := formatDate(patch.StartDate); got != tt.wantStart {
				t.Errorf("start = %q, want %q", got, tt.wantStart)
			}
			if got := formatDate(patch.EndDate); got != tt.wantEnd {
				t.Errorf("end = %q, want %q", got, tt.wantEnd)
			}
		})
	}
}

func TestScrollSync_PerUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		mustCreate(t, svc, &storage.Task{Name: name, Assignee: name})
	}
	if _, err := svc.TimelineView(ctx, "u1"); err != nil {
		t.Fatalf("TimelineView failed: %v", err)
	}

	if tree, chart := svc.WheelTree("u1", 40); tree != 40 || chart != 40 {
		t.Errorf("WheelTree = %d/%d, want 40/40", tree, chart)
	}
	if tree, chart := svc.ScrollChart("u1", 10); tree != 10 || chart != 10 {
		t.Errorf("ScrollChart = %d/%d, want 10/10", tree, chart)
	}

	view, err := svc.TimelineView(ctx, "u1")
	if err != nil {
		t.Fatalf("TimelineView failed: %v", err)
	}
	if view.TreeOffset != 10 || view.ChartOffset != 10 {
		t.Errorf("offsets after reload = %d/%d, want 10/10", view.TreeOffset, view.ChartOffset)
	}

	if tree, chart := svc.ScrollChart("u2", 0); tree != 0 || chart != 0 {
		t.Errorf("other user offsets = %d/%d, want 0/0", tree, chart)
	}
}

func TestWindowAndFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	old := mustCreate(t, svc, &storage.Task{Name: "old", EndDate: datePtr("2023-06-01"), Assignee: "a"})
	mustCreate(t, svc, &storage.Task{Name: "now", StartDate: datePtr("2024-01-05"), Assignee: "b", Category: "support"})

	view, _ := svc.TimelineView(ctx, "u1")
	if got := timeline.RowIDs(view.Rows); !equalStrings(got, []string{"user:b", "cat:b:support"}) {
		t.Errorf("default window rows = %v", got)
	}

	// The default collapse already ran, so the newly visible category is open.
	svc.SetWindow("u1", nil, nil)
	view, _ = svc.TimelineView(ctx, "u1")
	want := []string{"user:a", "cat:a:routine", old.ID, "user:b", "cat:b:support"}
	if got := timeline.RowIDs(view.Rows); !equalStrings(got, want) {
		t.Errorf("unbounded window rows = %v, want %v", got, want)
	}

	svc.SetCategory("u1", types.CategorySupport, false)
	view, _ = svc.TimelineView(ctx, "u1")
	want = []string{"user:a", "cat:a:routine", old.ID}
	if got := timeline.RowIDs(view.Rows); !equalStrings(got, want) {
		t.Errorf("filtered rows = %v, want %v", got, want)
	}

	svc.SetCategories("u1", []types.Category{types.CategorySupport})
	svc.ResetWindow("u1")
	svc.SetGranularity("u1", timeline.GranularityMonth)
	view, _ = svc.TimelineView(ctx, "u1")
	if got := timeline.RowIDs(view.Rows); !equalStrings(got, []string{"user:b", "cat:b:support"}) {
		t.Errorf("reset rows = %v", got)
	}
	if view.Granularity != timeline.GranularityMonth {
		t.Errorf("granularity = %q, want month", view.Granularity)
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
