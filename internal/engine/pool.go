package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/monorun/internal/logger"
	"github.com/alexisbeaulieu97/monorun/internal/model"
	"github.com/alexisbeaulieu97/monorun/internal/service"
)

// Phase names which script of a node is executed.
type Phase string

const (
	// PhaseCheck runs the check script.
	PhaseCheck Phase = "check"
	// PhaseRun runs the run script.
	PhaseRun Phase = "run"
)

// ScriptRunner executes one script for a node and returns its exit code.
// A non-nil error means the script could not be executed at all.
type ScriptRunner interface {
	RunScript(ctx context.Context, node *Node, phase Phase, script string) (int, error)
}

// ScriptRunnerFunc adapts a function to ScriptRunner.
type ScriptRunnerFunc func(ctx context.Context, node *Node, phase Phase, script string) (int, error)

// RunScript calls f.
func (f ScriptRunnerFunc) RunScript(ctx context.Context, node *Node, phase Phase, script string) (int, error) {
	return f(ctx, node, phase, script)
}

type request struct {
	node *Node
	mode model.Mode
}

type response struct {
	nodeID   string
	executor int
	success  bool
	exitCode int
	ranCheck bool
	ranRun   bool
	message  string
	err      error
	duration time.Duration
}

// message is sent to an executor mailbox. A nil request asks the executor to stop.
type message struct {
	req *request
}

// executorSlot is one persistent executor goroutine with a single-slot mailbox.
type executorSlot struct {
	id    int
	inbox chan message
	done  chan struct{}
}

// startPool launches n executors reporting on results. Scripts run with a
// context detached from ctx cancellation so in-flight work always finishes.
func startPool(ctx context.Context, n int, runner ScriptRunner, results chan<- response, log *logger.Logger) []*executorSlot {
	slots := make([]*executorSlot, n)
	runCtx := context.WithoutCancel(ctx)
	for i := 0; i < n; i++ {
		slot := &executorSlot{id: i, inbox: make(chan message, 1), done: make(chan struct{})}
		slots[i] = slot
		go slot.loop(runCtx, runner, results, log.With("executor", i))
	}
	return slots
}

func (e *executorSlot) loop(ctx context.Context, runner ScriptRunner, results chan<- response, log *logger.Logger) {
	defer close(e.done)
	log.Debug("executor started")

	for msg := range e.inbox {
		if msg.req == nil {
			log.Debug("executor stopping")
			return
		}
		resp := execute(ctx, runner, msg.req)
		resp.executor = e.id
		results <- resp
	}
}

// stop asks the executor to exit and waits for the acknowledgement.
func (e *executorSlot) stop() {
	e.inbox <- message{}
	<-e.done
}

// execute runs a node on the calling executor: the check script first for
// check-then-run nodes, then the run script when needed.
func execute(ctx context.Context, runner ScriptRunner, req *request) response {
	start := time.Now()
	step := req.node.Step
	resp := response{nodeID: req.node.ID}

	if req.mode == model.ModeCheckThenRun {
		if outcome, decided := checkOutcome(step.Check); decided {
			if outcome {
				resp.success = true
				resp.message = "check override reports no change"
				resp.duration = time.Since(start)
				return resp
			}
		} else {
			code, err := runner.RunScript(ctx, req.node, PhaseCheck, step.Check.Text)
			resp.ranCheck = true
			resp.exitCode = code
			if err != nil {
				resp.err = fmt.Errorf("check: %w", err)
				resp.message = "check could not be executed"
				resp.duration = time.Since(start)
				return resp
			}
			if code == 0 {
				resp.success = true
				resp.message = "check reports no change"
				resp.duration = time.Since(start)
				return resp
			}
		}
	}

	if success, message, fixed := runOutcome(step.Run); fixed {
		resp.success = success
		resp.message = message
		resp.duration = time.Since(start)
		return resp
	}

	code, err := runner.RunScript(ctx, req.node, PhaseRun, step.Run.Text)
	resp.ranRun = true
	resp.exitCode = code
	resp.duration = time.Since(start)
	switch {
	case err != nil:
		resp.err = fmt.Errorf("run: %w", err)
		resp.message = "run could not be executed"
	case code != 0:
		resp.message = fmt.Sprintf("run exited with status %d", code)
	default:
		resp.success = true
		resp.message = "run succeeded"
	}
	return resp
}

// checkOutcome reports whether a check script is decided without executing
// anything. A missing check means the node must run; an override is its own
// outcome, true meaning no change. Blank text counts as missing.
func checkOutcome(check service.Script) (noChange bool, decided bool) {
	switch check.Kind {
	case service.ScriptText:
		if strings.TrimSpace(check.Text) == "" {
			return false, true
		}
		return false, false
	case service.ScriptOverride:
		return check.Override, true
	default:
		return false, true
	}
}

// runOutcome reports whether a run script has a fixed outcome. Blank text has
// nothing to run.
func runOutcome(run service.Script) (success bool, message string, fixed bool) {
	switch run.Kind {
	case service.ScriptText:
		if strings.TrimSpace(run.Text) == "" {
			return true, "nothing to run", true
		}
		return false, "", false
	case service.ScriptOverride:
		if run.Override {
			return true, "run override succeeded", true
		}
		return false, "run override failed", true
	default:
		return true, "nothing to run", true
	}
}

// resolveInline decides a node without an executor when no script would be
// executed for it.
func resolveInline(item *Selected) (response, bool) {
	step := item.Node.Step
	resp := response{nodeID: item.Node.ID, executor: model.NoExecutor}

	if item.Mode == model.ModeCheckThenRun {
		noChange, decided := checkOutcome(step.Check)
		if !decided {
			return response{}, false
		}
		if noChange {
			resp.success = true
			resp.message = "check override reports no change"
			return resp, true
		}
	}

	success, message, fixed := runOutcome(step.Run)
	if !fixed {
		return response{}, false
	}
	resp.success = success
	resp.message = message
	return resp, true
}
