package service

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/timeline"
	"github.com/youssefsiam38/taskpg/types"
)

// DragEdge says which part of a bar was dragged.
type DragEdge string

const (
	DragMove  DragEdge = "move"
	DragStart DragEdge = "start"
	DragEnd   DragEdge = "end"
)

// ParseDragEdge maps s to an edge, defaulting to DragMove.
func ParseDragEdge(s string) DragEdge {
	switch DragEdge(s) {
	case DragStart, DragEnd:
		return DragEdge(s)
	default:
		return DragMove
	}
}

// TimelineView reloads tasks and profiles and builds the timeline for userID.
func (s *Service[TTx]) TimelineView(ctx context.Context, userID string) (*timeline.View, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := s.client.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return s.viewState(userID).Build(tasks, profiles, s.Today()), nil
}

// ToggleRow flips the collapse state of a row and reports whether it is now
// collapsed.
func (s *Service[TTx]) ToggleRow(userID string, key timeline.RowKey) bool {
	return s.viewState(userID).Toggle(key)
}

// SetWindow replaces the timeline window of userID. It returns
// timeline.ErrWindowTooLarge for windows longer than timeline.MaxWindowDays.
func (s *Service[TTx]) SetWindow(userID string, from, to *civil.Date) error {
	return s.viewState(userID).SetWindow(timeline.Window{From: from, To: to})
}

// ResetWindow restores the default window around today.
func (s *Service[TTx]) ResetWindow(userID string) {
	s.viewState(userID).ResetWindow(s.Today())
}

// SetCategory turns one category filter on or off.
func (s *Service[TTx]) SetCategory(userID string, category types.Category, active bool) {
	s.viewState(userID).SetCategory(category, active)
}

// SetCategories activates exactly the given categories.
func (s *Service[TTx]) SetCategories(userID string, active []types.Category) {
	s.viewState(userID).SetCategories(active)
}

// SetGranularity changes the chart column unit.
func (s *Service[TTx]) SetGranularity(userID string, g timeline.Granularity) {
	s.viewState(userID).SetGranularity(g)
}

// ScrollChart records a chart scroll and returns the synced offsets.
func (s *Service[TTx]) ScrollChart(userID string, offset int) (tree, chart int) {
	v := s.viewState(userID)
	v.ChartScrolled(offset)
	return v.ScrollOffsets()
}

// WheelTree applies tree wheel input and returns the synced offsets.
func (s *Service[TTx]) WheelTree(userID string, delta int) (tree, chart int) {
	v := s.viewState(userID)
	v.TreeWheel(delta)
	return v.ScrollOffsets()
}

// RescheduleBar handles a bar dropped at new dates. Task bars get a single
// date update; header bars leave the store untouched. Either way the view is
// rebuilt from a fresh reload.
func (s *Service[TTx]) RescheduleBar(ctx context.Context, userID string, key timeline.RowKey, start, end civil.Date) (*timeline.View, error) {
	if key.Kind == timeline.KindTask {
		if _, err := s.client.RescheduleTask(ctx, key.TaskID, start, end); err != nil {
			return nil, mapError(err)
		}
	}
	return s.TimelineView(ctx, userID)
}

// DragBar shifts a bar by days. A move shifts every date the task has; an
// edge drag moves one end and never crosses the other.
func (s *Service[TTx]) DragBar(ctx context.Context, userID string, key timeline.RowKey, edge DragEdge, days int) (*timeline.View, error) {
	if key.Kind == timeline.KindTask && days != 0 {
		task, err := s.client.GetTask(ctx, key.TaskID)
		if err != nil {
			return nil, mapError(err)
		}
		if patch := dragPatch(task, edge, days); !patch.Empty() {
			if _, err := s.client.UpdateTask(ctx, task.ID, patch); err != nil {
				return nil, mapError(err)
			}
		}
	}
	return s.TimelineView(ctx, userID)
}

// SetBarProgress updates the progress of a task row. Header rows are ignored.
func (s *Service[TTx]) SetBarProgress(ctx context.Context, userID string, key timeline.RowKey, progress int) (*timeline.View, error) {
	if key.Kind == timeline.KindTask {
		if progress < 0 || progress > 100 {
			return nil, fmt.Errorf("%w: progress %d out of range", ErrInvalidInput, progress)
		}
		if _, err := s.client.SetProgress(ctx, key.TaskID, progress); err != nil {
			return nil, mapError(err)
		}
	}
	return s.TimelineView(ctx, userID)
}

func dragPatch(t *storage.Task, edge DragEdge, days int) *storage.TaskPatch {
	start, end := validDate(t.StartDate), validDate(t.EndDate)
	patch := &storage.TaskPatch{}

	switch edge {
	case DragStart:
		if start == nil {
			return patch
		}
		d := start.AddDays(days)
		if end != nil && d.After(*end) {
			d = *end
		}
		patch.StartDate = &d
	case DragEnd:
		if end == nil {
			return patch
		}
		d := end.AddDays(days)
		if start != nil && d.Before(*start) {
			d = *start
		}
		patch.EndDate = &d
	default:
		if start != nil {
			d := start.AddDays(days)
			patch.StartDate = &d
		}
		if end != nil {
			d := end.AddDays(days)
			patch.EndDate = &d
		}
	}
	return patch
}
