package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apprun "github.com/alexisbeaulieu97/monorun/internal/app/run"
)

// selectionFlags are shared by the commands that select nodes.
type selectionFlags struct {
	changedSince string
	runDeps      bool
	runRDeps     bool
	workers      int
	executor     string
}

func (s *selectionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.changedSince, "changed-since", "", "Also select services changed since this git revision")
	cmd.Flags().BoolVarP(&s.runDeps, "deps", "d", false, "Include the dependencies of selected nodes")
	cmd.Flags().BoolVarP(&s.runRDeps, "rdeps", "r", false, "Include the dependents of selected nodes")
	cmd.Flags().IntVarP(&s.workers, "workers", "j", 0, "Number of parallel executors (default: project option or CPU count)")
	cmd.Flags().StringVar(&s.executor, "executor", string(apprun.IsolationLocal), "Where scripts run (local or container)")
}

func (s *selectionFlags) request(root *rootFlags, targets []string) (apprun.Request, error) {
	if len(targets) == 0 && strings.TrimSpace(s.changedSince) == "" {
		return apprun.Request{}, fmt.Errorf("nothing selected: pass targets or --changed-since")
	}
	if s.workers < 0 {
		return apprun.Request{}, fmt.Errorf("--workers must be positive")
	}
	isolation, err := apprun.ParseIsolation(s.executor)
	if err != nil {
		return apprun.Request{}, err
	}

	return apprun.Request{
		Root:         root.projectDir,
		Targets:      targets,
		ChangedSince: strings.TrimSpace(s.changedSince),
		RunDeps:      s.runDeps,
		RunRDeps:     s.runRDeps,
		Workers:      s.workers,
		Isolation:    isolation,
	}, nil
}
