package executor

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/alexisbeaulieu97/monorun/internal/logger"
	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

// Local runs scripts with a shell on the host, in the service directory.
type Local struct {
	// Shell overrides shell detection when set. It is invoked as "<shell> -c <script>".
	Shell  string
	Output *Output
	Log    *logger.Logger
}

var _ Executor = (*Local)(nil)

// Execute runs req.Script and returns its exit status.
func (l *Local) Execute(ctx context.Context, req Request) (Outcome, error) {
	if err := validate(req); err != nil {
		return Outcome{}, monoerrors.NewExecutionError(req.NodeID, err)
	}

	shell, shellArgs, err := determineShell(l.Shell)
	if err != nil {
		return Outcome{}, monoerrors.NewExecutionError(req.NodeID, err)
	}

	args := append(shellArgs, req.Script)
	cmd := exec.CommandContext(ctx, shell, args...)
	cmd.Dir = req.Dir
	cmd.Env = buildEnv(req.Env)

	return run(ctx, cmd, req.NodeID, l.Output, l.log())
}

func (l *Local) log() *logger.Logger {
	if l.Log == nil {
		return logger.Nop()
	}
	return l.Log
}

func run(ctx context.Context, cmd *exec.Cmd, nodeID string, output *Output, log *logger.Logger) (Outcome, error) {
	stdout := output.For(nodeID)
	stderr := output.For(nodeID)
	if stdout != nil {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	}

	start := time.Now()
	code, res, err := runStreaming(cmd)
	flush(stdout)
	flush(stderr)

	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		if out := res.primaryOutput(); out != "" {
			err = fmt.Errorf("%w: %s", err, out)
		}
		return Outcome{ExitCode: -1}, monoerrors.NewExecutionError(nodeID, err)
	}

	log.Debug("script finished", "node", nodeID, "exit_code", code, "duration", time.Since(start).String())
	return Outcome{ExitCode: code, Output: res.primaryOutput()}, nil
}

func determineShell(explicit string) (string, []string, error) {
	if explicit != "" {
		return explicit, []string{"-c"}, nil
	}

	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}, nil
	}

	if path, err := exec.LookPath("bash"); err == nil {
		return path, []string{"-c"}, nil
	}

	if path, err := exec.LookPath("sh"); err == nil {
		return path, []string{"-c"}, nil
	}

	return "", nil, fmt.Errorf("no suitable shell found")
}
