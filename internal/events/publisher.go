// Package events distributes run progress events to subscribers such as the
// log sink and the terminal UI.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/alexisbeaulieu97/monorun/internal/logger"
	"github.com/alexisbeaulieu97/monorun/internal/model"
)

// Type names an event kind.
type Type string

const (
	// NodeStarted is emitted when a node is handed to an executor.
	NodeStarted Type = "node.started"
	// NodeFinished is emitted when a node reaches a terminal state.
	NodeFinished Type = "node.finished"
	// RunFinished is emitted once every node is terminal.
	RunFinished Type = "run.finished"
)

// Event describes one occurrence during a run. Only the fields relevant to
// the event type are set.
type Event struct {
	Type     Type
	Time     time.Time
	NodeID   string
	Executor int
	Mode     model.Mode
	Result   *model.NodeResult
	Run      *model.RunResult
}

// Publisher distributes events. Dispatch is synchronous.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Handler processes a single event.
type Handler func(context.Context, Event) error

// Subscription is a registered handler.
type Subscription interface {
	Unsubscribe()
}

// Bus logs every event and forwards it to the handlers subscribed to its type.
type Bus struct {
	log    *logger.Logger
	subs   map[Type][]subscriptionEntry
	nextID int
	mu     sync.RWMutex
}

var _ Publisher = (*Bus)(nil)

// NewBus creates a bus that writes each event as a debug log entry.
func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		log:  log,
		subs: make(map[Type][]subscriptionEntry),
	}
}

// Publish logs the event and runs every matching handler in subscription order.
// Handler errors are logged and never stop delivery.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if b == nil {
		return nil
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	handlers := append([]subscriptionEntry(nil), b.subs[event.Type]...)
	b.mu.RUnlock()

	b.log.Debug("run event", eventFields(event)...)

	for _, entry := range handlers {
		if entry.handler == nil {
			continue
		}
		if err := entry.handler(ctx, event); err != nil {
			b.log.Warn("event handler failed", "event_type", string(event.Type), "error", err.Error())
		}
	}

	return nil
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType Type, handler Handler) Subscription {
	if b == nil || handler == nil {
		return noopSubscription{}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscriptionEntry{id: id, handler: handler})
	b.mu.Unlock()

	return subscription{
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			handlers := b.subs[eventType]
			for i, entry := range handlers {
				if entry.id == id {
					b.subs[eventType] = append(handlers[:i:i], handlers[i+1:]...)
					break
				}
			}
		},
	}
}

func eventFields(event Event) []any {
	fields := []any{"event_type", string(event.Type)}
	if event.NodeID != "" {
		fields = append(fields, "node", event.NodeID)
	}
	if event.Mode != "" {
		fields = append(fields, "mode", string(event.Mode))
	}
	if event.Type == NodeStarted {
		fields = append(fields, "executor", event.Executor)
	}
	if event.Result != nil {
		fields = append(fields, "state", string(event.Result.State), "duration", event.Result.Duration.String())
	}
	if event.Run != nil {
		fields = append(fields, "success", event.Run.Success, "nodes", len(event.Run.Nodes))
	}
	return fields
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

type subscription struct {
	cancel func()
}

func (s subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

type subscriptionEntry struct {
	id      int
	handler Handler
}
