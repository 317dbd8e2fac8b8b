package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/monorun/internal/model"
)

func TestViewRendersNodes(t *testing.T) {
	t.Parallel()

	m := apply(t, NewModel("shop", testPlan(), nil),
		NodeFinishMsg{Result: model.NodeResult{
			NodeID:   "build:lib",
			State:    model.StateSucceeded,
			Message:  "run succeeded",
			Duration: 1500 * time.Millisecond,
		}},
		NodeStartMsg{ID: "build:api"},
	)

	view := m.View()
	require.Contains(t, view, "monorun • shop")
	require.Contains(t, view, "1/3 nodes")
	require.Contains(t, view, "build:lib: run succeeded (1.5s)")
	require.Contains(t, view, "build:api")
	require.Contains(t, view, "[check first]")
	require.Contains(t, view, "Nodes: 1/3 finished")
}

func TestViewShowsFailuresWhenFinished(t *testing.T) {
	t.Parallel()

	results := map[string]model.NodeResult{
		"build:lib": {NodeID: "build:lib", State: model.StateFailed, Message: "run exited with status 2"},
		"build:api": {NodeID: "build:api", State: model.StateSkipped, Message: "dependency build:lib failed"},
		"build:web": {NodeID: "build:web", State: model.StateSkipped, Message: "dependency build:lib failed"},
	}
	msgs := []any{}
	for _, id := range []string{"build:lib", "build:api", "build:web"} {
		msgs = append(msgs, NodeFinishMsg{Result: results[id]})
	}

	m := NewModel("", testPlan(), nil)
	for _, msg := range msgs {
		m = apply(t, m, msg)
	}
	m = apply(t, m, RunFinishMsg{Result: model.NewRunResult(results, time.Second)})

	view := m.View()
	require.Contains(t, view, "monorun • run")
	require.Contains(t, view, "Run failed")
	require.Contains(t, view, "Failed: build:lib")
	require.Contains(t, view, "Skipped: build:api, build:web")
}

func TestStatusIcon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		state    model.NodeState
		expected string
	}{
		{"succeeded shows checkmark", model.StateSucceeded, "✓"},
		{"dispatched shows hourglass", model.StateDispatched, "⏳"},
		{"failed shows cross", model.StateFailed, "✗"},
		{"skipped shows circle-slash", model.StateSkipped, "⊘"},
		{"cancelled shows square", model.StateCancelled, "■"},
		{"pending shows ellipsis", model.StatePending, "…"},
		{"empty shows ellipsis", "", "…"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Contains(t, StatusIcon(tt.state), tt.expected)
		})
	}
}
