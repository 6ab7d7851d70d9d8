package service

import (
	"context"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/timeline"
	"github.com/youssefsiam38/taskpg/types"
)

// DashboardStats contains aggregated task statistics for the home page.
type DashboardStats struct {
	TotalTasks     int                    `json:"total_tasks"`
	TasksByStatus  map[types.Status]int   `json:"tasks_by_status"`
	TasksByPrio    map[types.Priority]int `json:"tasks_by_priority"`
	TasksByCat     map[types.Category]int `json:"tasks_by_category"`
	Overdue        int                    `json:"overdue"`
	DueThisWeek    int                    `json:"due_this_week"`
	Stalled        int                    `json:"stalled"`
	CompletionRate float64                `json:"completion_rate"`
	AvgProgress    float64                `json:"avg_progress"`

	TopAssignees  []*AssigneeStats `json:"top_assignees"`
	OverdueTasks  []*storage.Task  `json:"overdue_tasks"`
	RecentlyDone  []*storage.Task  `json:"recently_done"`
	RecentUpdates []*storage.Task  `json:"recent_updates"`
}

// AssigneeStats summarizes the workload of one assignee.
type AssigneeStats struct {
	Name      string `json:"name"`
	Open      int    `json:"open"`
	Done      int    `json:"done"`
	Overdue   int    `json:"overdue"`
	TaskCount int    `json:"task_count"`
}

// GetDashboardStats returns aggregated statistics for the dashboard.
func (s *Service[TTx]) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	return dashboardStats(tasks, s.Today()), nil
}

func dashboardStats(tasks []*storage.Task, today civil.Date) *DashboardStats {
	stats := &DashboardStats{
		TotalTasks:    len(tasks),
		TasksByStatus: make(map[types.Status]int),
		TasksByPrio:   make(map[types.Priority]int),
		TasksByCat:    make(map[types.Category]int),
	}
	weekEnd := today.AddDays(7)
	byAssignee := make(map[string]*AssigneeStats)

	var progressSum int
	for _, t := range tasks {
		stats.TasksByStatus[t.Status]++
		stats.TasksByPrio[t.Priority]++
		stats.TasksByCat[t.WorkCategory()]++
		progressSum += t.Progress
		if t.Status.Stalled() {
			stats.Stalled++
		}

		name := t.Assignee
		if name == "" {
			name = timeline.Unassigned
		}
		as := byAssignee[name]
		if as == nil {
			as = &AssigneeStats{Name: name}
			byAssignee[name] = as
		}
		as.TaskCount++

		if t.Status == types.StatusDone {
			as.Done++
			stats.RecentlyDone = append(stats.RecentlyDone, t)
			continue
		}
		as.Open++
		if overdue(t, today) {
			stats.Overdue++
			as.Overdue++
			stats.OverdueTasks = append(stats.OverdueTasks, t)
		} else if t.EndDate != nil && !t.EndDate.After(weekEnd) {
			stats.DueThisWeek++
		}
	}

	if len(tasks) > 0 {
		stats.CompletionRate = float64(stats.TasksByStatus[types.StatusDone]) / float64(len(tasks)) * 100
		stats.AvgProgress = float64(progressSum) / float64(len(tasks))
	}

	for _, as := range byAssignee {
		stats.TopAssignees = append(stats.TopAssignees, as)
	}
	sort.Slice(stats.TopAssignees, func(i, j int) bool {
		a, b := stats.TopAssignees[i], stats.TopAssignees[j]
		if a.Open != b.Open {
			return a.Open > b.Open
		}
		return a.Name < b.Name
	})
	if len(stats.TopAssignees) > 5 {
		stats.TopAssignees = stats.TopAssignees[:5]
	}

	sort.SliceStable(stats.OverdueTasks, func(i, j int) bool {
		return dateLess(stats.OverdueTasks[i].EndDate, stats.OverdueTasks[j].EndDate)
	})
	stats.OverdueTasks = firstN(stats.OverdueTasks, 5)

	stats.RecentlyDone = firstN(byUpdated(stats.RecentlyDone), 5)
	stats.RecentUpdates = firstN(byUpdated(append([]*storage.Task(nil), tasks...)), 10)
	return stats
}

func byUpdated(tasks []*storage.Task) []*storage.Task {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
	})
	return tasks
}

func firstN(tasks []*storage.Task, n int) []*storage.Task {
	if len(tasks) > n {
		return tasks[:n]
	}
	return tasks
}
