package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/youssefsiam38/taskpg/driver"
)

// mockNotifier implements driver.Notifier for testing.
type mockNotifier struct {
	notifications []driver.Notification
	mu            sync.Mutex
	notifyErr     error
}

func (m *mockNotifier) Notify(ctx context.Context, channel, payload string) error {
	if m.notifyErr != nil {
		return m.notifyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, driver.Notification{Channel: channel, Payload: payload})
	return nil
}

// mockListener implements driver.Listener for testing.
type mockListener struct {
	notifications chan *driver.Notification
	closed        atomic.Bool
	listenErr     error
	listened      []string
}

func newMockListener() *mockListener {
	return &mockListener{
		notifications: make(chan *driver.Notification, 10),
	}
}

func (m *mockListener) Listen(ctx context.Context, channel string) error {
	m.listened = append(m.listened, channel)
	return m.listenErr
}

func (m *mockListener) WaitForNotification(ctx context.Context) (*driver.Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n := <-m.notifications:
		return n, nil
	}
}

func (m *mockListener) Close(ctx context.Context) error {
	m.closed.Store(true)
	return nil
}

func taskMessage(op EventType, taskID string) *driver.Notification {
	payload, _ := json.Marshal(message{Op: op, TaskID: taskID})
	return &driver.Notification{Channel: driver.ChannelTaskChanged, Payload: string(payload)}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNotifier_StartStop(t *testing.T) {
	n := NewNotifier(nil, nil, nil)

	ctx := context.Background()

	// Start should succeed
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !n.IsRunning() {
		t.Error("Expected notifier to be running")
	}

	// Second start should fail
	if err := n.Start(ctx); err != ErrAlreadyStarted {
		t.Fatalf("Start() error = %v, want %v", err, ErrAlreadyStarted)
	}

	// Stop should succeed
	if err := n.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if n.IsRunning() {
		t.Error("Expected notifier to not be running")
	}
}

func TestNotifier_StopNotStarted(t *testing.T) {
	n := NewNotifier(nil, nil, nil)

	if err := n.Stop(context.Background()); err != ErrNotStarted {
		t.Fatalf("Stop() error = %v, want %v", err, ErrNotStarted)
	}
}

func TestNotifier_Subscribe(t *testing.T) {
	listener := newMockListener()
	getListener := func(ctx context.Context) (driver.Listener, error) {
		return listener, nil
	}

	n := NewNotifier(getListener, nil, nil)

	var (
		mu             sync.Mutex
		receivedEvents []*Event
	)
	received := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(receivedEvents)
	}

	unsubscribe := n.Subscribe(EventTaskUpdated, func(event *Event) {
		mu.Lock()
		receivedEvents = append(receivedEvents, event)
		mu.Unlock()
	})

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = n.Stop(ctx) }()

	listener.notifications <- taskMessage(EventTaskCreated, "task-0")
	listener.notifications <- taskMessage(EventTaskUpdated, "task-123")
	waitFor(t, func() bool { return received() == 1 })

	mu.Lock()
	if receivedEvents[0].Type != EventTaskUpdated {
		t.Errorf("Event type = %v, want %v", receivedEvents[0].Type, EventTaskUpdated)
	}
	if receivedEvents[0].Payload != "task-123" {
		t.Errorf("Event payload = %v, want task-123", receivedEvents[0].Payload)
	}
	mu.Unlock()

	unsubscribe()

	listener.notifications <- taskMessage(EventTaskUpdated, "task-456")
	time.Sleep(50 * time.Millisecond)

	if got := received(); got != 1 {
		t.Errorf("Received %d events after unsubscribe, want 1", got)
	}
	if len(listener.listened) != 1 || listener.listened[0] != driver.ChannelTaskChanged {
		t.Errorf("Listened on %v, want [%s]", listener.listened, driver.ChannelTaskChanged)
	}
}

func TestNotifier_IgnoresMalformedPayload(t *testing.T) {
	listener := newMockListener()
	var errCount atomic.Int32
	n := NewNotifier(func(ctx context.Context) (driver.Listener, error) {
		return listener, nil
	}, nil, &Config{OnError: func(err error) { errCount.Add(1) }})

	var count atomic.Int32
	n.SubscribeAll(func(event *Event) { count.Add(1) })

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = n.Stop(ctx) }()

	listener.notifications <- &driver.Notification{Channel: driver.ChannelTaskChanged, Payload: "not json"}
	listener.notifications <- taskMessage(EventType("bogus"), "x")
	listener.notifications <- taskMessage(EventTaskDeleted, "task-1")
	waitFor(t, func() bool { return count.Load() == 1 })

	if errCount.Load() != 1 {
		t.Errorf("OnError called %d times, want 1", errCount.Load())
	}
}

func TestNotifier_Reconnect(t *testing.T) {
	var attempts atomic.Int32
	listener := newMockListener()
	var reconnects atomic.Int32

	n := NewNotifier(func(ctx context.Context) (driver.Listener, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return listener, nil
	}, nil, &Config{
		ReconnectDelay: 10 * time.Millisecond,
		OnReconnect:    func() { reconnects.Add(1) },
	})

	var count atomic.Int32
	n.Subscribe(EventTaskCreated, func(event *Event) { count.Add(1) })

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = n.Stop(ctx) }()

	listener.notifications <- taskMessage(EventTaskCreated, "task-1")
	waitFor(t, func() bool { return count.Load() == 1 })

	if reconnects.Load() < 1 {
		t.Error("Expected OnReconnect to be called")
	}
}

func TestNotifier_Notify(t *testing.T) {
	mock := &mockNotifier{}
	n := NewNotifier(func(ctx context.Context) (driver.Listener, error) {
		return newMockListener(), nil
	}, mock, nil)

	var local atomic.Int32
	n.SubscribeAll(func(event *Event) { local.Add(1) })

	if err := n.Notify(context.Background(), EventTaskCreated, "task-123"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.notifications) != 1 {
		t.Fatalf("Sent %d notifications, want 1", len(mock.notifications))
	}
	if mock.notifications[0].Channel != driver.ChannelTaskChanged {
		t.Errorf("Channel = %v, want %v", mock.notifications[0].Channel, driver.ChannelTaskChanged)
	}

	var msg message
	if err := json.Unmarshal([]byte(mock.notifications[0].Payload), &msg); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if msg.Op != EventTaskCreated || msg.TaskID != "task-123" {
		t.Errorf("Payload = %+v", msg)
	}

	// Listener-backed notifiers receive their own events through LISTEN.
	if local.Load() != 0 {
		t.Errorf("Expected no local dispatch, got %d", local.Load())
	}
}

func TestNotifier_LocalDelivery(t *testing.T) {
	n := NewNotifier(nil, nil, nil)
	if !n.Local() {
		t.Fatal("Expected local mode without a listener")
	}

	var got []EventType
	n.Subscribe(EventTaskDeleted, func(event *Event) { got = append(got, event.Type) })
	n.SubscribeAll(func(event *Event) { got = append(got, "all:"+event.Type) })

	if err := n.Notify(context.Background(), EventTaskDeleted, "task-1"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := n.Notify(context.Background(), EventTasksImported, ""); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	want := []EventType{EventTaskDeleted, "all:" + EventTaskDeleted, "all:" + EventTasksImported}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNotifier_NotifyNotSupported(t *testing.T) {
	n := NewNotifier(func(ctx context.Context) (driver.Listener, error) {
		return newMockListener(), nil
	}, nil, nil)

	err := n.Notify(context.Background(), EventTaskUpdated, "task-123")
	if err != ErrNotifyNotSupported {
		t.Errorf("Notify() error = %v, want %v", err, ErrNotifyNotSupported)
	}
}

func TestNotifier_UnknownEventType(t *testing.T) {
	n := NewNotifier(nil, &mockNotifier{}, nil)

	err := n.Notify(context.Background(), EventType("unknown"), "payload")
	if err != ErrUnknownEventType {
		t.Errorf("Notify() error = %v, want %v", err, ErrUnknownEventType)
	}
}

func TestNotifier_MultipleSubscribers(t *testing.T) {
	listener := newMockListener()
	n := NewNotifier(func(ctx context.Context) (driver.Listener, error) {
		return listener, nil
	}, nil, nil)

	var count1, count2 atomic.Int32
	n.Subscribe(EventTaskUpdated, func(event *Event) { count1.Add(1) })
	n.Subscribe(EventTaskUpdated, func(event *Event) { count2.Add(1) })

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	listener.notifications <- taskMessage(EventTaskUpdated, "task-123")
	waitFor(t, func() bool { return count1.Load() == 1 && count2.Load() == 1 })

	if err := n.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !listener.closed.Load() {
		t.Error("Expected listener to be closed on stop")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", config.ReconnectDelay)
	}
}
