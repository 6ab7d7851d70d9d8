package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// BoardColumn holds the tasks of one status.
type BoardColumn struct {
	Status types.Status    `json:"status"`
	Tasks  []*storage.Task `json:"tasks"`
}

// Board is the status board: one column per status in workflow order.
type Board struct {
	Columns []*BoardColumn `json:"columns"`
	Total   int            `json:"total"`
}

// GetBoard groups tasks by status. Inside a column tasks are ordered by
// priority (highest first), then by end date.
func (s *Service[TTx]) GetBoard(ctx context.Context) (*Board, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	board := &Board{Total: len(tasks)}
	columns := make(map[types.Status]*BoardColumn, len(types.Statuses))
	for _, status := range types.Statuses {
		col := &BoardColumn{Status: status}
		columns[status] = col
		board.Columns = append(board.Columns, col)
	}

	for _, t := range tasks {
		col, ok := columns[t.Status]
		if !ok {
			col = columns[types.StatusToDo]
		}
		col.Tasks = append(col.Tasks, t)
	}

	for _, col := range board.Columns {
		sort.SliceStable(col.Tasks, func(i, j int) bool {
			a, b := col.Tasks[i], col.Tasks[j]
			if priorityRank[a.Priority] != priorityRank[b.Priority] {
				return priorityRank[a.Priority] > priorityRank[b.Priority]
			}
			return dateLess(a.EndDate, b.EndDate)
		})
	}
	return board, nil
}

// MoveTask changes a task's status from the board. Progress follows the
// status/progress coupling.
func (s *Service[TTx]) MoveTask(ctx context.Context, id string, status types.Status) (*storage.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.PatchTask(ctx, id, &storage.TaskPatch{Status: &status})
}
