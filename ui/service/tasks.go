package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg"
	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// ListTasks returns a filtered, ordered page of tasks.
func (s *Service[TTx]) ListTasks(ctx context.Context, params TaskListParams) (*TaskList, error) {
	if params.Limit <= 0 {
		params.Limit = 25
	}
	params.Limit = ValidateLimit(params.Limit)
	params.Offset = ValidateOffset(params.Offset)

	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*storage.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	search := strings.ToLower(strings.TrimSpace(params.Search))
	assignee := strings.ToLower(strings.TrimSpace(params.Assignee))
	today := s.Today()

	var matched []*TaskSummary
	for _, t := range tasks {
		if params.Status != "" && string(t.Status) != params.Status {
			continue
		}
		if assignee != "" && strings.ToLower(strings.TrimSpace(t.Assignee)) != assignee {
			continue
		}
		if params.Category != "" && t.WorkCategory() != types.NormalizeCategory(params.Category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Name), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}

		summary := &TaskSummary{
			Task:            t,
			WorkCategory:    t.WorkCategory(),
			Overdue:         overdue(t, today),
			DependencyCount: len(t.DependencyIDs()),
		}
		if p, ok := byID[t.Parent()]; ok {
			summary.ParentName = p.Name
		}
		matched = append(matched, summary)
	}

	sortTasks(matched, ValidateOrderBy(params.OrderBy, AllowedTaskOrderBy), ValidateOrderDir(params.OrderDir))

	total := len(matched)
	start := min(params.Offset, total)
	end := min(start+params.Limit, total)

	return &TaskList{
		Tasks:      matched[start:end],
		TotalCount: total,
		HasMore:    end < total,
	}, nil
}

var priorityRank = map[types.Priority]int{
	types.PriorityLow:    0,
	types.PriorityMedium: 1,
	types.PriorityHigh:   2,
	types.PriorityUrgent: 3,
}

var statusRank = func() map[types.Status]int {
	m := make(map[types.Status]int, len(types.Statuses))
	for i, s := range types.Statuses {
		m[s] = i
	}
	return m
}()

// sortTasks orders tasks in place. An empty orderBy keeps store order.
func sortTasks(tasks []*TaskSummary, orderBy, dir string) {
	var less func(a, b *storage.Task) bool
	switch orderBy {
	case "start_date":
		less = func(a, b *storage.Task) bool { return dateLess(a.StartDate, b.StartDate) }
	case "end_date":
		less = func(a, b *storage.Task) bool { return dateLess(a.EndDate, b.EndDate) }
	case "name":
		less = func(a, b *storage.Task) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case "priority":
		less = func(a, b *storage.Task) bool { return priorityRank[a.Priority] < priorityRank[b.Priority] }
	case "progress":
		less = func(a, b *storage.Task) bool { return a.Progress < b.Progress }
	case "status":
		less = func(a, b *storage.Task) bool { return statusRank[a.Status] < statusRank[b.Status] }
	default:
		return
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if dir == "desc" {
			return less(tasks[j].Task, tasks[i].Task)
		}
		return less(tasks[i].Task, tasks[j].Task)
	})
}

// dateLess orders dates ascending with missing dates last.
func dateLess(a, b *civil.Date) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}

// GetTaskDetail returns a task with its parent, children and dependencies.
func (s *Service[TTx]) GetTaskDetail(ctx context.Context, id string) (*TaskDetail, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*storage.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	task, ok := byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	detail := &TaskDetail{
		Task:    task,
		Parent:  byID[task.Parent()],
		Overdue: overdue(task, s.Today()),
	}
	for _, t := range tasks {
		if t.Parent() == id && t.ID != id {
			detail.Children = append(detail.Children, t)
		}
	}
	for _, dep := range task.DependencyIDs() {
		if t, ok := byID[dep]; ok {
			detail.Dependencies = append(detail.Dependencies, t)
		}
	}
	return detail, nil
}

// CreateTask creates a task from a form.
func (s *Service[TTx]) CreateTask(ctx context.Context, form TaskForm) (*storage.Task, error) {
	task, err := form.Task()
	if err != nil {
		return nil, err
	}
	return s.client.CreateTask(ctx, task)
}

// UpdateTask overwrites a task with a form.
func (s *Service[TTx]) UpdateTask(ctx context.Context, id string, form TaskForm) (*storage.Task, error) {
	patch, err := form.Patch()
	if err != nil {
		return nil, err
	}
	task, err := s.client.UpdateTask(ctx, id, patch)
	return task, mapError(err)
}

// PatchTask applies a partial update.
func (s *Service[TTx]) PatchTask(ctx context.Context, id string, patch *storage.TaskPatch) (*storage.Task, error) {
	task, err := s.client.UpdateTask(ctx, id, patch)
	return task, mapError(err)
}

// ImportTasks creates every form in one transaction. Nothing is stored when
// any form is invalid.
func (s *Service[TTx]) ImportTasks(ctx context.Context, forms []TaskForm) (int, error) {
	tasks := make([]*storage.Task, 0, len(forms))
	for i, form := range forms {
		task, err := form.Task()
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
		tasks = append(tasks, task)
	}
	return s.client.ImportTasks(ctx, tasks)
}

// DeleteTask removes a task.
func (s *Service[TTx]) DeleteTask(ctx context.Context, id string) error {
	return mapError(s.client.DeleteTask(ctx, id))
}

// ListProfiles returns every profile.
func (s *Service[TTx]) ListProfiles(ctx context.Context) ([]*storage.Profile, error) {
	return s.client.ListProfiles(ctx)
}

// ListTeams returns every team.
func (s *Service[TTx]) ListTeams(ctx context.Context) ([]*storage.Team, error) {
	return s.client.ListTeams(ctx)
}

// CreateTeam creates a team.
func (s *Service[TTx]) CreateTeam(ctx context.Context, name, color string) (*storage.Team, error) {
	team, err := s.client.CreateTeam(ctx, &storage.Team{Name: strings.TrimSpace(name), Color: color})
	if errors.Is(err, taskpg.ErrInvalidConfig) {
		return nil, ErrInvalidInput
	}
	return team, err
}

// IsValidationError reports whether err was caused by bad input rather than
// a store failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, taskpg.ErrInvalidTask)
}

func mapError(err error) error {
	if errors.Is(err, taskpg.ErrTaskNotFound) {
		return ErrNotFound
	}
	return err
}

func overdue(t *storage.Task, today civil.Date) bool {
	return t.EndDate != nil && t.EndDate.Before(today) && t.Status != types.StatusDone
}
