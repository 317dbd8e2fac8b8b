package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/monorun/internal/events"
)

// MessageFor converts a run event into the matching Bubbletea message.
func MessageFor(event events.Event) (tea.Msg, bool) {
	switch event.Type {
	case events.NodeStarted:
		return NodeStartMsg{ID: event.NodeID, Executor: event.Executor, Mode: event.Mode, Time: event.Time}, true
	case events.NodeFinished:
		if event.Result == nil {
			return nil, false
		}
		return NodeFinishMsg{Result: *event.Result}, true
	case events.RunFinished:
		return RunFinishMsg{Result: event.Run}, true
	default:
		return nil, false
	}
}

// Forward subscribes send to every run event on bus. The returned function
// removes the subscriptions.
func Forward(bus *events.Bus, send func(tea.Msg)) func() {
	handler := func(_ context.Context, event events.Event) error {
		if msg, ok := MessageFor(event); ok {
			send(msg)
		}
		return nil
	}

	subs := []events.Subscription{
		bus.Subscribe(events.NodeStarted, handler),
		bus.Subscribe(events.NodeFinished, handler),
		bus.Subscribe(events.RunFinished, handler),
	}
	return func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
}

// Recorder applies messages to a model without a running program. It backs
// the plain report used when stdout is not a terminal.
type Recorder struct {
	model Model
}

// NewRecorder wraps m.
func NewRecorder(m Model) *Recorder {
	return &Recorder{model: m}
}

// Send applies msg. Event handlers run on the scheduler goroutine, so calls
// are never concurrent.
func (r *Recorder) Send(msg tea.Msg) {
	updated, _ := r.model.Update(msg)
	if m, ok := updated.(Model); ok {
		r.model = m
	}
}

// Model returns the current state.
func (r *Recorder) Model() Model {
	return r.model
}
