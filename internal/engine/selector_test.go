package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/monorun/internal/config"
	"github.com/alexisbeaulieu97/monorun/internal/model"
	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

func selectorGraph(t *testing.T) *Graph {
	t.Helper()

	return mustGraph(t,
		newStep("build", "lib"),
		newStep("build", "api", afterServices("lib")),
		newStep("test", "api", afterSteps("build")),
		newStep("lint", "api", onChanged(config.OnChangedSkip)),
		newStep("deploy", "api", afterSteps("test"), skipRun()),
		newStep("build", "web", afterServices("api"), onChanged(config.OnChangedCheckFirst)),
	)
}

func TestSelect_Targets(t *testing.T) {
	t.Parallel()

	graph := selectorGraph(t)

	tests := []struct {
		name    string
		targets []string
		want    []string
	}{
		{
			name:    "node target",
			targets: []string{"build:api"},
			want:    []string{"build:api"},
		},
		{
			name:    "skip_run node can be targeted explicitly",
			targets: []string{"deploy:api"},
			want:    []string{"deploy:api"},
		},
		{
			name:    "service target excludes skip_run",
			targets: []string{"api"},
			want:    []string{"build:api", "lint:api", "test:api"},
		},
		{
			name:    "duplicates collapse",
			targets: []string{"build:lib", "lib", " build:lib "},
			want:    []string{"build:lib"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			set := mustSelect(t, graph, SelectOptions{Targets: tt.targets})
			require.Equal(t, tt.want, set.IDs())
			for _, id := range set.IDs() {
				item, ok := set.Get(id)
				require.True(t, ok)
				require.Equal(t, model.ModeRun, item.Mode)
				require.True(t, item.Seeded)
			}
		})
	}
}

func TestSelect_UnknownTargets(t *testing.T) {
	t.Parallel()

	graph := selectorGraph(t)

	for _, target := range []string{"missing:api", "ghost", "build:ghost"} {
		_, err := Select(graph, SelectOptions{Targets: []string{target}})
		var validationErr *monoerrors.ValidationError
		require.ErrorAs(t, err, &validationErr, target)
		require.Contains(t, err.Error(), target)
	}
}

func TestSelect_ChangedServices(t *testing.T) {
	t.Parallel()

	graph := selectorGraph(t)

	set := mustSelect(t, graph, SelectOptions{Changed: []string{"api", "web"}})
	require.Equal(t, []string{"build:api", "build:web", "test:api"}, set.IDs())
	require.Equal(t, model.ModeRun, set.Items["build:api"].Mode)
	require.Equal(t, model.ModeCheckThenRun, set.Items["build:web"].Mode)

	set = mustSelect(t, graph, SelectOptions{Changed: []string{"unknown"}})
	require.Zero(t, set.Len())
}

func TestSelect_TargetWinsOverCheckFirst(t *testing.T) {
	t.Parallel()

	graph := selectorGraph(t)

	set := mustSelect(t, graph, SelectOptions{
		Targets: []string{"build:web"},
		Changed: []string{"web"},
	})
	require.Equal(t, model.ModeRun, set.Items["build:web"].Mode)
}

func TestSelect_RunDeps(t *testing.T) {
	t.Parallel()

	graph := selectorGraph(t)

	set := mustSelect(t, graph, SelectOptions{Targets: []string{"build:web"}, RunDeps: true})
	require.Equal(t, []string{"build:api", "build:lib", "build:web"}, set.IDs())

	require.True(t, set.Items["build:web"].Seeded)
	require.False(t, set.Items["build:api"].Seeded)
	require.Equal(t, model.ModeRun, set.Items["build:api"].Mode)

	require.Equal(t, []string{"build:api"}, set.Items["build:web"].DependsOn)
	require.Equal(t, []string{"build:web"}, set.Items["build:api"].Dependents)
	require.Zero(t, set.Items["build:lib"].InDegree())
}

func TestSelect_RunRDepsKeepsPolicy(t *testing.T) {
	t.Parallel()

	graph := selectorGraph(t)

	set := mustSelect(t, graph, SelectOptions{Targets: []string{"build:lib"}, RunRDeps: true})
	require.Equal(t, []string{"build:api", "build:lib", "build:web", "deploy:api", "test:api"}, set.IDs())
	require.Equal(t, model.ModeCheckThenRun, set.Items["build:web"].Mode)
	require.Equal(t, model.ModeRun, set.Items["test:api"].Mode)
}

func TestSelect_ExpansionOfSkipPolicyChecksFirst(t *testing.T) {
	t.Parallel()

	graph := mustGraph(t,
		newStep("gen", "api", onChanged(config.OnChangedSkip)),
		newStep("build", "api", afterSteps("gen")),
	)

	set := mustSelect(t, graph, SelectOptions{Targets: []string{"build:api"}, RunDeps: true})
	require.Equal(t, model.ModeCheckThenRun, set.Items["gen:api"].Mode)
}

func TestSelect_RestrictsEdgesToSet(t *testing.T) {
	t.Parallel()

	graph := selectorGraph(t)

	set := mustSelect(t, graph, SelectOptions{Targets: []string{"test:api", "build:lib"}})
	require.Empty(t, set.Items["test:api"].DependsOn)
	require.Empty(t, set.Items["build:lib"].Dependents)
}

func TestSelect_Empty(t *testing.T) {
	t.Parallel()

	set := mustSelect(t, selectorGraph(t), SelectOptions{})
	require.Zero(t, set.Len())
	require.Empty(t, set.IDs())

	_, err := Select(nil, SelectOptions{})
	require.Error(t, err)
}
