// Package service provides the task tracker operations shared by the JSON
// API and the SSR frontend.
//
// The service layer is HTTP-agnostic. Every read goes through a TaskFeed,
// which numbers reloads so a slow reload never overwrites the result of a
// newer one.
//
// # Usage
//
//	svc := service.New(client, &service.Options{Location: loc})
//	defer svc.Close()
//
//	// Build the timeline for the signed-in user
//	view, err := svc.TimelineView(ctx, userID)
//
//	// Drop a task bar three days later
//	view, err = svc.DragBar(ctx, userID, timeline.TaskKey(id), service.DragMove, 3)
//
// # Design
//
// The service layer:
//   - Uses the taskpg client for every write, so coupling and change events apply
//   - Keeps timeline view state (window, collapse set, filters, scroll) per user
//   - Returns view models shaped for templates and JSON
package service
