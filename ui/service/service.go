package service

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg"
	"github.com/youssefsiam38/taskpg/notifier"
	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/timeline"
)

// Options configures a Service.
type Options struct {
	// Location is the time zone "today" is computed in.
	// Defaults to time.Local.
	Location *time.Location

	// Now returns the current time. Defaults to the client's clock.
	Now func() time.Time

	// ViewIdleTTL is how long a user's timeline state (window, collapsed
	// rows, filters, scroll) survives without use.
	// Defaults to DefaultViewIdleTTL.
	ViewIdleTTL time.Duration
}

// DefaultViewIdleTTL is the default Options.ViewIdleTTL.
const DefaultViewIdleTTL = 24 * time.Hour

// userView is one user's timeline state and when it was last touched.
type userView struct {
	state *timeline.ViewState
	used  time.Time
}

// Service provides the task tracker operations shared by the JSON API and
// the SSR frontend.
// The TTx type parameter represents the native transaction type
// from the driver (e.g., pgx.Tx or *sql.Tx).
type Service[TTx any] struct {
	client *taskpg.Client[TTx]
	feed   *TaskFeed
	loc    *time.Location
	now    func() time.Time

	mu        sync.Mutex
	views     map[string]*userView
	viewTTL   time.Duration
	lastPrune time.Time

	unsubscribe func()
}

// New creates a new Service over client. Task change events published by
// any process bump the feed version.
func New[TTx any](client *taskpg.Client[TTx], opts *Options) *Service[TTx] {
	if opts == nil {
		opts = &Options{}
	}
	s := &Service[TTx]{
		client:  client,
		loc:     opts.Location,
		now:     opts.Now,
		views:   make(map[string]*userView),
		viewTTL: opts.ViewIdleTTL,
	}
	if s.viewTTL <= 0 {
		s.viewTTL = DefaultViewIdleTTL
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = client.Now
	}
	s.feed = NewTaskFeed(client.ListTasks)
	s.unsubscribe = client.SubscribeAll(func(*notifier.Event) {
		s.feed.MarkChanged()
	})
	return s
}

// Close detaches the service from the client's change events.
func (s *Service[TTx]) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Client returns the underlying client.
// This is useful for advanced operations not covered by the service.
func (s *Service[TTx]) Client() *taskpg.Client[TTx] {
	return s.client
}

// Feed returns the task feed.
func (s *Service[TTx]) Feed() *TaskFeed {
	return s.feed
}

// Today returns the current date in the configured location.
func (s *Service[TTx]) Today() civil.Date {
	return civil.DateOf(s.now().In(s.loc))
}

// Tasks reloads the full task list.
func (s *Service[TTx]) Tasks(ctx context.Context) ([]*storage.Task, error) {
	return s.feed.Reload(ctx)
}

// viewState returns the timeline state of one user, creating it on first
// use. States idle for longer than the TTL are dropped along the way.
func (s *Service[TTx]) viewState(userID string) *timeline.ViewState {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastPrune) >= time.Minute {
		s.lastPrune = now
		for id, v := range s.views {
			if now.Sub(v.used) > s.viewTTL {
				delete(s.views, id)
			}
		}
	}

	v, ok := s.views[userID]
	if !ok {
		v = &userView{state: timeline.NewViewState(s.Today())}
		s.views[userID] = v
	}
	v.used = now
	return v.state
}
