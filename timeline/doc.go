// Package timeline builds the hierarchical Gantt view of a task list.
//
// A build turns a flat task collection plus per-user view state into an
// ordered list of rows (assignee, then work category, then the task tree)
// and one chart entry per row in the same order:
//
//	rows := timeline.Build(timeline.Input{
//		Tasks:     tasks,
//		Profiles:  profiles,
//		Window:    timeline.DefaultWindow(today),
//		Collapsed: state.Collapsed(),
//	})
//	entries := timeline.Project(rows, window, today)
//	layout := timeline.ComputeLayout(entries, window, today, timeline.GranularityWeek)
//
// ViewState keeps what a user changes between builds: the collapsed rows,
// the date window, the active categories and the scroll offsets.
package timeline
