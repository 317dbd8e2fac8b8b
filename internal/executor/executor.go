// Package executor runs node scripts, either through a local shell or inside
// a container.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Environment variables exported to every script.
const (
	EnvStep        = "MONORUN_STEP"
	EnvService     = "MONORUN_SERVICE"
	EnvNode        = "MONORUN_NODE"
	EnvProjectRoot = "MONORUN_PROJECT_ROOT"
)

// Request describes one script execution.
type Request struct {
	NodeID string
	// Image is the container image used by container executors.
	Image string
	Env   map[string]string
	// Script is shell text; multi-line scripts run as a single shell invocation.
	Script string
	// Dir is the absolute service directory the script runs in.
	Dir string
}

// Outcome is the result of a script that could be started.
type Outcome struct {
	ExitCode int
	// Output is stderr when present, stdout otherwise.
	Output string
}

// Success reports whether the script exited with status zero.
func (o Outcome) Success() bool {
	return o.ExitCode == 0
}

// Executor runs a script and reports its exit status. A non-nil error means
// the script could not be run at all.
type Executor interface {
	Execute(ctx context.Context, req Request) (Outcome, error)
}

// NodeEnv returns the variables identifying a node to its scripts.
func NodeEnv(step, service, nodeID, projectRoot string) map[string]string {
	return map[string]string{
		EnvStep:        step,
		EnvService:     service,
		EnvNode:        nodeID,
		EnvProjectRoot: projectRoot,
	}
}

// buildEnv appends custom variables to the current process environment in a
// stable order.
func buildEnv(custom map[string]string) []string {
	env := os.Environ()
	for _, k := range sortedKeys(custom) {
		env = append(env, fmt.Sprintf("%s=%s", k, custom[k]))
	}
	return env
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validate(req Request) error {
	if req.Dir == "" {
		return fmt.Errorf("working directory is required")
	}
	if !filepath.IsAbs(req.Dir) {
		return fmt.Errorf("working directory %q must be absolute", req.Dir)
	}
	return nil
}
