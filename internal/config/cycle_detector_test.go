package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectCycle(t *testing.T) {
	t.Parallel()

	t.Run("acyclic chain", func(t *testing.T) {
		t.Parallel()
		steps := map[string]ProjectStep{
			"generate": {},
			"build":    {DependsOn: []string{"generate"}},
			"test":     {DependsOn: []string{"build", "generate"}},
		}
		require.Nil(t, detectCycle(steps))
	})

	t.Run("two step cycle", func(t *testing.T) {
		t.Parallel()
		steps := map[string]ProjectStep{
			"a": {DependsOn: []string{"b"}},
			"b": {DependsOn: []string{"a"}},
		}
		require.Equal(t, []string{"a", "b", "a"}, detectCycle(steps))
	})

	t.Run("cycle behind an acyclic prefix", func(t *testing.T) {
		t.Parallel()
		steps := map[string]ProjectStep{
			"a": {DependsOn: []string{"b"}},
			"b": {DependsOn: []string{"c"}},
			"c": {DependsOn: []string{"d"}},
			"d": {DependsOn: []string{"b"}},
		}
		require.Equal(t, []string{"b", "c", "d", "b"}, detectCycle(steps))
	})

	t.Run("self dependency", func(t *testing.T) {
		t.Parallel()
		steps := map[string]ProjectStep{
			"lint": {DependsOn: []string{"lint"}},
		}
		require.Equal(t, []string{"lint", "lint"}, detectCycle(steps))
	})

	t.Run("unknown dependencies are ignored", func(t *testing.T) {
		t.Parallel()
		steps := map[string]ProjectStep{
			"a": {DependsOn: []string{"ghost"}},
		}
		require.Nil(t, detectCycle(steps))
	})
}
