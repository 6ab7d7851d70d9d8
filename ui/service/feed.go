package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/youssefsiam38/taskpg/storage"
)

// TaskFeed serialises full task-list reloads.
//
// Every reload takes a sequence number before it queries. A result is
// applied only when no reload with a higher number has been applied yet,
// so a slow response can never overwrite a newer one. Reload always returns
// the newest applied snapshot.
//
// The feed also carries a version that change events bump; clients poll it
// to learn that their copy is stale.
type TaskFeed struct {
	load func(ctx context.Context) ([]*storage.Task, error)

	mu      sync.Mutex
	issued  uint64
	applied uint64
	tasks   []*storage.Task

	version atomic.Uint64
}

// NewTaskFeed returns a feed that loads tasks with load.
func NewTaskFeed(load func(ctx context.Context) ([]*storage.Task, error)) *TaskFeed {
	return &TaskFeed{load: load}
}

// Begin reserves the next sequence number.
func (f *TaskFeed) Begin() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	return f.issued
}

// Apply stores tasks as the current snapshot if seq is newer than the last
// applied reload. It reports whether the snapshot was replaced.
func (f *TaskFeed) Apply(seq uint64, tasks []*storage.Task) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seq <= f.applied {
		return false
	}
	f.applied = seq
	f.tasks = tasks
	return true
}

// Snapshot returns the newest applied task list.
func (f *TaskFeed) Snapshot() []*storage.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks
}

// Reload loads the task list and returns the newest applied snapshot.
func (f *TaskFeed) Reload(ctx context.Context) ([]*storage.Task, error) {
	seq := f.Begin()
	tasks, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	f.Apply(seq, tasks)
	return f.Snapshot(), nil
}

// MarkChanged bumps the version.
func (f *TaskFeed) MarkChanged() {
	f.version.Add(1)
}

// Version returns the current version.
func (f *TaskFeed) Version() uint64 {
	return f.version.Load()
}
