package main

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	apprun "github.com/alexisbeaulieu97/monorun/internal/app/run"
	"github.com/alexisbeaulieu97/monorun/internal/model"
)

func TestRunCommandBuildsRequest(t *testing.T) {
	original := runCmdRunner
	t.Cleanup(func() { runCmdRunner = original })

	var got apprun.Request
	var gotNonInteractive bool
	runCmdRunner = func(_ *cobra.Command, _ *rootFlags, req apprun.Request, nonInteractive bool) error {
		got = req
		gotNonInteractive = nonInteractive
		return nil
	}

	_, err := executeCommand(newRootCmd(), "-C", "/repo", "run", "build:api", "web",
		"--changed-since", "main", "-d", "-r", "-j", "4", "--executor", "container")
	require.NoError(t, err)

	require.Equal(t, apprun.Request{
		Root:         "/repo",
		Targets:      []string{"build:api", "web"},
		ChangedSince: "main",
		RunDeps:      true,
		RunRDeps:     true,
		Workers:      4,
		Isolation:    apprun.IsolationContainer,
	}, got)
	require.True(t, gotNonInteractive)
}

func TestRunCommandRejectsNegativeWorkers(t *testing.T) {
	_, err := executeCommand(newRootCmd(), "run", "api", "--workers=-1")
	require.Error(t, err)
}

func TestRunCommandExecutesScripts(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell assumptions do not hold on Windows")
	}

	output, err := executeCommand(newRootCmd(), "-C", sampleProject(t), "run", "build:api", "--deps")
	require.NoError(t, err)
	require.Contains(t, output, "[build:lib] building lib")
	require.Contains(t, output, "[build:api] building api")
	require.Contains(t, output, "Run finished successfully")
}

func TestRunCommandReportsFailures(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell assumptions do not hold on Windows")
	}

	root := writeProject(t, map[string]string{
		"monorun.yaml":         "name: shop\nsteps:\n  build: {}\n  test:\n    depends_on: [build]\n",
		"srv/lib/monorun.yaml": "steps:\n  build:\n    run: exit 4\n  test:\n    run: echo never\n",
	})

	output, err := executeCommand(newRootCmd(), "-C", root, "run", "lib")
	require.Error(t, err)

	var failed *runFailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, []string{"build:lib"}, failed.failed)
	require.Equal(t, []string{"test:lib"}, failed.skipped)
	require.Contains(t, err.Error(), "failed: build:lib")
	require.Contains(t, err.Error(), "skipped: test:lib")
	require.NotContains(t, output, "never")
}

func TestRunCommandNothingToRun(t *testing.T) {
	root := writeProject(t, map[string]string{
		"monorun.yaml":         "name: shop\nsteps:\n  deploy:\n    skip_run: true\n",
		"srv/api/monorun.yaml": "steps:\n  deploy:\n    run: echo deploy\n",
	})

	output, err := executeCommand(newRootCmd(), "-C", root, "run", "api")
	require.NoError(t, err)
	require.Contains(t, output, "Nothing to run.")
}

func TestRunError(t *testing.T) {
	t.Parallel()

	require.NoError(t, runError(nil))

	ok := model.NewRunResult(map[string]model.NodeResult{
		"a:x": {NodeID: "a:x", State: model.StateSucceeded},
	}, time.Second)
	require.NoError(t, runError(ok))

	cancelled := model.NewRunResult(map[string]model.NodeResult{
		"a:x": {NodeID: "a:x", State: model.StateSucceeded},
		"b:x": {NodeID: "b:x", State: model.StateCancelled},
	}, time.Second)
	err := runError(cancelled)
	require.Error(t, err)
	require.Equal(t, "run failed\ncancelled: b:x", err.Error())
}
