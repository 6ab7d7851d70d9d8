// Package notifier delivers task change events between taskpg processes.
//
// For drivers that support Listener (pgx/v5, lib/pq), events travel through
// PostgreSQL LISTEN/NOTIFY so every process sharing the database sees them,
// including the sender. Drivers without a listener (SQLite) deliver events
// to subscribers of the same process as soon as Notify is called.
package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/youssefsiam38/taskpg/driver"
)

// EventType represents the type of event.
type EventType string

// Event types that can be subscribed to.
const (
	EventTaskCreated   EventType = "task_created"
	EventTaskUpdated   EventType = "task_updated"
	EventTaskDeleted   EventType = "task_deleted"
	EventTasksImported EventType = "tasks_imported"
)

var knownEventTypes = map[EventType]bool{
	EventTaskCreated:   true,
	EventTaskUpdated:   true,
	EventTaskDeleted:   true,
	EventTasksImported: true,
}

// Event represents a notification event.
type Event struct {
	// Type is the event type.
	Type EventType

	// Payload is the affected task ID. Empty for EventTasksImported.
	Payload string

	// ReceivedAt is when the event was received.
	ReceivedAt time.Time
}

// Handler is called when an event is received.
type Handler func(event *Event)

// Config holds configuration for the notifier.
type Config struct {
	// ReconnectDelay is how long to wait before reconnecting after a disconnect.
	// Default: 5 seconds
	ReconnectDelay time.Duration

	// OnError is called when an error occurs.
	OnError func(err error)

	// OnReconnect is called when the listener reconnects.
	OnReconnect func()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ReconnectDelay: 5 * time.Second,
	}
}

// message is the NOTIFY payload on driver.ChannelTaskChanged.
type message struct {
	Op     EventType `json:"op"`
	TaskID string    `json:"task_id,omitempty"`
}

// Subscription represents an active subscription to events.
type Subscription struct {
	eventType EventType
	handler   Handler
	id        int64
}

// allEvents keys subscriptions made through SubscribeAll.
const allEvents EventType = "*"

// Notifier provides event notification capabilities.
type Notifier struct {
	getListener func(ctx context.Context) (driver.Listener, error)
	notifier    driver.Notifier
	config      *Config

	mu            sync.RWMutex
	subscriptions map[EventType][]*Subscription
	nextSubID     int64

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewNotifier creates a new notifier.
// getListener returns a fresh listener for each connection attempt; pass nil
// when the driver cannot listen, which switches the notifier to in-process
// delivery. notifier sends NOTIFY and may be nil.
func NewNotifier(
	getListener func(ctx context.Context) (driver.Listener, error),
	notifier driver.Notifier,
	config *Config,
) *Notifier {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultConfig().ReconnectDelay
	}

	return &Notifier{
		getListener:   getListener,
		notifier:      notifier,
		config:        config,
		subscriptions: make(map[EventType][]*Subscription),
	}
}

// Local reports whether events are delivered in-process only.
func (n *Notifier) Local() bool {
	return n.getListener == nil
}

// Start begins listening for notifications.
// In local mode there is nothing to listen to and Start only marks the
// notifier as running.
func (n *Notifier) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	n.done = make(chan struct{})
	ctx, n.cancel = context.WithCancel(ctx)
	go n.run(ctx)

	return nil
}

// Stop stops the notifier.
func (n *Notifier) Stop(ctx context.Context) error {
	if !n.started.Load() {
		return ErrNotStarted
	}

	n.cancel()
	select {
	case <-n.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	n.started.Store(false)
	return nil
}

// Subscribe registers a handler for the given event type.
// Returns a function to unsubscribe.
func (n *Notifier) Subscribe(eventType EventType, handler Handler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub := &Subscription{
		eventType: eventType,
		handler:   handler,
		id:        n.nextSubID,
	}
	n.nextSubID++

	n.subscriptions[eventType] = append(n.subscriptions[eventType], sub)

	return func() {
		n.unsubscribe(eventType, sub.id)
	}
}

// SubscribeAll registers a handler for every event type.
func (n *Notifier) SubscribeAll(handler Handler) func() {
	return n.Subscribe(allEvents, handler)
}

// unsubscribe removes a subscription.
func (n *Notifier) unsubscribe(eventType EventType, id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.subscriptions[eventType]
	for i, sub := range subs {
		if sub.id == id {
			n.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

// Notify publishes an event about taskID.
func (n *Notifier) Notify(ctx context.Context, eventType EventType, taskID string) error {
	if !knownEventTypes[eventType] {
		return ErrUnknownEventType
	}

	if n.Local() {
		n.dispatch(&Event{Type: eventType, Payload: taskID, ReceivedAt: time.Now()})
		if n.notifier == nil {
			return nil
		}
	}

	if n.notifier == nil {
		return ErrNotifyNotSupported
	}

	payload, err := json.Marshal(message{Op: eventType, TaskID: taskID})
	if err != nil {
		return err
	}
	return n.notifier.Notify(ctx, driver.ChannelTaskChanged, string(payload))
}

// run is the main notification loop.
func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := n.listenLoop(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				if n.config.OnError != nil {
					n.config.OnError(err)
				}
				// Wait before reconnecting
				select {
				case <-ctx.Done():
					return
				case <-time.After(n.config.ReconnectDelay):
					if n.config.OnReconnect != nil {
						n.config.OnReconnect()
					}
				}
			}
		}
	}
}

// listenLoop creates a listener and processes notifications until an error occurs.
func (n *Notifier) listenLoop(ctx context.Context) error {
	if n.getListener == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	listener, err := n.getListener(ctx)
	if err != nil {
		return err
	}
	if listener == nil {
		// Driver doesn't support listeners
		<-ctx.Done()
		return ctx.Err()
	}
	defer func() { _ = listener.Close(ctx) }()

	if err := listener.Listen(ctx, driver.ChannelTaskChanged); err != nil {
		return err
	}

	for {
		notification, err := listener.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if notification.Channel != driver.ChannelTaskChanged {
			continue
		}

		var msg message
		if err := json.Unmarshal([]byte(notification.Payload), &msg); err != nil {
			if n.config.OnError != nil {
				n.config.OnError(err)
			}
			continue
		}
		if !knownEventTypes[msg.Op] {
			continue
		}

		n.dispatch(&Event{
			Type:       msg.Op,
			Payload:    msg.TaskID,
			ReceivedAt: time.Now(),
		})
	}
}

// dispatch sends an event to all subscribed handlers.
func (n *Notifier) dispatch(event *Event) {
	n.mu.RLock()
	subs := make([]*Subscription, 0, len(n.subscriptions[event.Type])+len(n.subscriptions[allEvents]))
	subs = append(subs, n.subscriptions[event.Type]...)
	subs = append(subs, n.subscriptions[allEvents]...)
	n.mu.RUnlock()

	// Handlers run synchronously to keep ordering; they must be quick.
	for _, sub := range subs {
		sub.handler(event)
	}
}

// IsRunning returns true if the notifier is running.
func (n *Notifier) IsRunning() bool {
	return n.started.Load()
}
