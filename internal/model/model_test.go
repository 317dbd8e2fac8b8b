package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNodeResultCreation(t *testing.T) {
	t.Parallel()

	t.Run("creates node result with all fields", func(t *testing.T) {
		t.Parallel()
		result := NodeResult{
			NodeID:   "build:api",
			State:    StateSucceeded,
			Mode:     ModeRun,
			Executor: 1,
			RanRun:   true,
			Duration: time.Second,
		}

		require.Equal(t, "build:api", result.NodeID)
		require.Equal(t, StateSucceeded, result.State)
		require.Equal(t, 1, result.Executor)
		require.True(t, result.RanRun)
		require.False(t, result.RanCheck)
	})

	t.Run("creates node result with error", func(t *testing.T) {
		t.Parallel()
		err := errors.New("shell missing")
		result := NodeResult{NodeID: "build:api", State: StateFailed, Error: err, Executor: NoExecutor}

		require.Equal(t, err, result.Error)
		require.Equal(t, NoExecutor, result.Executor)
	})
}

func TestNodeStateIsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    NodeState
		terminal bool
		valid    bool
	}{
		{StatePending, false, true},
		{StateReady, false, true},
		{StateDispatched, false, true},
		{StateSucceeded, true, true},
		{StateFailed, true, true},
		{StateSkipped, true, true},
		{StateCancelled, true, true},
		{NodeState("bogus"), false, false},
		{NodeState(""), false, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.state), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.terminal, tt.state.IsTerminal())
			require.Equal(t, tt.valid, tt.state.IsValid())
		})
	}
}

func TestNewRunResult(t *testing.T) {
	t.Parallel()

	t.Run("all succeeded", func(t *testing.T) {
		t.Parallel()
		r := NewRunResult(map[string]NodeResult{
			"build:api": {State: StateSucceeded},
			"build:web": {State: StateSucceeded},
		}, time.Second)

		require.True(t, r.Success)
		require.Empty(t, r.Failed())
		require.Equal(t, []string{"build:api", "build:web"}, r.IDs())
	})

	t.Run("empty run succeeds", func(t *testing.T) {
		t.Parallel()
		r := NewRunResult(nil, 0)
		require.True(t, r.Success)
		require.NotNil(t, r.Nodes)
	})

	t.Run("failure and skip are reported", func(t *testing.T) {
		t.Parallel()
		r := NewRunResult(map[string]NodeResult{
			"a:svc": {State: StateFailed},
			"b:svc": {State: StateSkipped},
			"c:svc": {State: StateSkipped},
			"d:svc": {State: StateSucceeded},
			"e:svc": {State: StateCancelled},
		}, 0)

		require.False(t, r.Success)
		require.Equal(t, []string{"a:svc"}, r.Failed())
		require.Equal(t, []string{"b:svc", "c:svc"}, r.Skipped())
		require.Equal(t, []string{"e:svc"}, r.Cancelled())
		require.Equal(t, []string{"a:svc", "b:svc", "c:svc"}, r.IDs(StateFailed, StateSkipped))
		require.Equal(t, RunSummary{Total: 5, Succeeded: 1, Failed: 1, Skipped: 2, Cancelled: 1}, r.Summary())
	})

	t.Run("nil result is safe", func(t *testing.T) {
		t.Parallel()
		var r *RunResult
		require.Nil(t, r.IDs())
		require.Equal(t, RunSummary{}, r.Summary())
	})
}
