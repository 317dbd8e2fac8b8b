package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/monorun/internal/logger"
	"github.com/alexisbeaulieu97/monorun/internal/model"
)

func newTestBus(t *testing.T) (*Bus, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	log, err := logger.New(logger.Options{Level: "debug", Writer: buf, Component: "events"})
	require.NoError(t, err)
	return NewBus(log), buf
}

func TestBusLogsEvents(t *testing.T) {
	t.Parallel()

	bus, buf := newTestBus(t)

	result := &model.NodeResult{NodeID: "build:api", State: model.StateSucceeded}
	err := bus.Publish(context.Background(), Event{Type: NodeFinished, NodeID: "build:api", Mode: model.ModeRun, Result: result})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	require.Equal(t, "run event", entry["message"])
	require.Equal(t, string(NodeFinished), entry["event_type"])
	require.Equal(t, "build:api", entry["node"])
	require.Equal(t, "succeeded", entry["state"])
}

func TestBusInvokesSubscribers(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(t)

	var got []Event
	bus.Subscribe(NodeStarted, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(RunFinished, func(context.Context, Event) error {
		t.Fatal("unexpected run.finished delivery")
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), Event{Type: NodeStarted, NodeID: "test:web", Executor: 1}))
	require.Len(t, got, 1)
	require.Equal(t, "test:web", got[0].NodeID)
	require.False(t, got[0].Time.IsZero(), "publish stamps the event time")
}

func TestBusHandlerErrorDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	bus, buf := newTestBus(t)

	var second bool
	bus.Subscribe(NodeFinished, func(context.Context, Event) error { return errors.New("boom") })
	bus.Subscribe(NodeFinished, func(context.Context, Event) error {
		second = true
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), Event{Type: NodeFinished}))
	require.True(t, second)
	require.Contains(t, buf.String(), "event handler failed")
}

func TestBusUnsubscribe(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(t)

	calls := 0
	sub := bus.Subscribe(RunFinished, func(context.Context, Event) error {
		calls++
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), Event{Type: RunFinished, Run: model.NewRunResult(nil, 0)}))
	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), Event{Type: RunFinished}))
	require.Equal(t, 1, calls)
}

func TestNilBusIsSafe(t *testing.T) {
	t.Parallel()

	var bus *Bus
	require.NoError(t, bus.Publish(context.Background(), Event{Type: RunFinished}))
	bus.Subscribe(RunFinished, func(context.Context, Event) error { return nil }).Unsubscribe()
}
