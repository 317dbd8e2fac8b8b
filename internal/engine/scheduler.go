package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/alexisbeaulieu97/monorun/internal/events"
	"github.com/alexisbeaulieu97/monorun/internal/logger"
	"github.com/alexisbeaulieu97/monorun/internal/model"
	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

// Scheduler dispatches the nodes of an execution set to a fixed pool of
// executors. A single coordinator goroutine owns every scheduling state
// transition; executors only exchange messages with it.
type Scheduler struct {
	workers   int
	runner    ScriptRunner
	publisher events.Publisher
	log       *logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the number of executors. Values below one are ignored.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPublisher sets the destination of node and run events.
func WithPublisher(p events.Publisher) Option {
	return func(s *Scheduler) {
		s.publisher = p
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScheduler creates a scheduler using runner for every executed script.
// The worker count defaults to the number of CPUs.
func NewScheduler(runner ScriptRunner, opts ...Option) *Scheduler {
	s := &Scheduler{
		workers: runtime.NumCPU(),
		runner:  runner,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Workers returns the configured executor count.
func (s *Scheduler) Workers() int {
	return s.workers
}

// coordinator holds the scheduling state of one run.
type coordinator struct {
	ctx       context.Context
	set       *ExecutionSet
	log       *logger.Logger
	publisher events.Publisher

	states    map[string]model.NodeState
	indegree  map[string]int
	results   map[string]model.NodeResult
	ready     []string
	remaining int
}

// Run executes the set and returns once every node is terminal. Script
// failures are reported in the result, never as an error. Cancelling ctx stops
// dispatching; in-flight scripts finish and undispatched nodes are Cancelled.
func (s *Scheduler) Run(ctx context.Context, set *ExecutionSet) (*model.RunResult, error) {
	if set == nil {
		return nil, monoerrors.NewExecutionError("", errors.New("execution set is nil"))
	}
	if s.runner == nil {
		return nil, monoerrors.NewExecutionError("", errors.New("script runner is nil"))
	}

	start := time.Now()
	c := newCoordinator(ctx, set, s.log, s.publisher)

	if set.Len() == 0 {
		return c.finish(start), nil
	}

	workers := s.workers
	if workers > set.Len() {
		workers = set.Len()
	}

	results := make(chan response, workers)
	slots := startPool(ctx, workers, s.runner, results, s.log)
	idle := make([]int, 0, workers)
	for i := range slots {
		idle = append(idle, i)
	}

	s.log.Debug("run started", "nodes", set.Len(), "workers", workers)

	inflight := 0
	stopping := false
	done := ctx.Done()

	for c.remaining > 0 {
		if !stopping && ctx.Err() != nil {
			stopping = true
			done = nil
		}

		if !stopping {
			for len(c.ready) > 0 {
				item := set.Items[c.ready[0]]
				if resp, ok := resolveInline(item); ok {
					c.ready = c.ready[1:]
					c.complete(resp)
					continue
				}
				if len(idle) == 0 {
					break
				}

				c.ready = c.ready[1:]
				executor := idle[0]
				idle = idle[1:]

				c.states[item.Node.ID] = model.StateDispatched
				s.log.Debug("dispatching node", "node", item.Node.ID, "executor", executor, "mode", string(item.Mode))
				c.publish(events.Event{Type: events.NodeStarted, NodeID: item.Node.ID, Executor: executor, Mode: item.Mode})

				slots[executor].inbox <- message{req: &request{node: item.Node, mode: item.Mode}}
				inflight++
			}
		}

		if inflight == 0 {
			if c.remaining == 0 {
				break
			}
			if stopping {
				c.cancelRemaining()
				break
			}
			// Nothing ready and nothing running with nodes left means the set
			// was not acyclic.
			for _, id := range set.IDs() {
				if !c.states[id].IsTerminal() {
					c.settle(id, model.StateCancelled, "no dependency can complete", nil)
				}
			}
			break
		}

		select {
		case resp := <-results:
			inflight--
			idle = append(idle, resp.executor)
			c.complete(resp)
		case <-done:
			s.log.Warn("run cancelled, waiting for in-flight nodes", "in_flight", inflight)
			stopping = true
			done = nil
		}
	}

	for _, slot := range slots {
		slot.stop()
	}

	result := c.finish(start)
	s.log.Debug("run finished", "success", result.Success, "duration", result.Duration.String())
	return result, nil
}

func newCoordinator(ctx context.Context, set *ExecutionSet, log *logger.Logger, publisher events.Publisher) *coordinator {
	c := &coordinator{
		ctx:       ctx,
		set:       set,
		log:       log,
		publisher: publisher,
		states:    make(map[string]model.NodeState, set.Len()),
		indegree:  make(map[string]int, set.Len()),
		results:   make(map[string]model.NodeResult, set.Len()),
		remaining: set.Len(),
	}

	for _, id := range set.IDs() {
		item := set.Items[id]
		c.indegree[id] = item.InDegree()
		if item.InDegree() == 0 {
			c.states[id] = model.StateReady
			c.ready = append(c.ready, id)
		} else {
			c.states[id] = model.StatePending
		}
	}
	return c
}

// complete applies an executor or inline response.
func (c *coordinator) complete(resp response) {
	item := c.set.Items[resp.nodeID]

	result := model.NodeResult{
		NodeID:   resp.nodeID,
		Mode:     item.Mode,
		Executor: resp.executor,
		RanCheck: resp.ranCheck,
		RanRun:   resp.ranRun,
		ExitCode: resp.exitCode,
		Message:  resp.message,
		Duration: resp.duration,
	}

	if resp.success {
		result.State = model.StateSucceeded
		c.record(result)
		c.promote(item)
		return
	}

	result.State = model.StateFailed
	cause := resp.err
	if cause == nil {
		cause = errors.New(resp.message)
	}
	result.Error = monoerrors.NewExecutionError(resp.nodeID, cause)
	c.log.Warn("node failed", "node", resp.nodeID, "exit_code", resp.exitCode, "reason", resp.message)
	c.record(result)
	c.skipDependents(item)
}

// promote decrements in-set dependents and queues those that became ready,
// in identifier order.
func (c *coordinator) promote(item *Selected) {
	var newlyReady []string
	for _, id := range item.Dependents {
		if c.states[id] != model.StatePending {
			continue
		}
		c.indegree[id]--
		if c.indegree[id] == 0 {
			c.states[id] = model.StateReady
			newlyReady = append(newlyReady, id)
		}
	}
	sort.Strings(newlyReady)
	c.ready = append(c.ready, newlyReady...)
}

// skipDependents marks every transitive in-set dependent of a failed node.
func (c *coordinator) skipDependents(failed *Selected) {
	queue := append([]string(nil), failed.Dependents...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if c.states[id].IsTerminal() {
			continue
		}
		c.settle(id, model.StateSkipped, fmt.Sprintf("dependency %s failed", failed.Node.ID), nil)
		queue = append(queue, c.set.Items[id].Dependents...)
	}
}

// cancelRemaining marks every non-terminal node Cancelled.
func (c *coordinator) cancelRemaining() {
	for _, id := range c.set.IDs() {
		if !c.states[id].IsTerminal() {
			c.settle(id, model.StateCancelled, "run cancelled before dispatch", c.ctx.Err())
		}
	}
	c.ready = nil
}

func (c *coordinator) settle(id string, state model.NodeState, message string, err error) {
	c.record(model.NodeResult{
		NodeID:   id,
		State:    state,
		Mode:     c.set.Items[id].Mode,
		Executor: model.NoExecutor,
		Message:  message,
		Error:    err,
	})
}

func (c *coordinator) record(result model.NodeResult) {
	c.states[result.NodeID] = result.State
	c.results[result.NodeID] = result
	c.remaining--
	c.publish(events.Event{Type: events.NodeFinished, NodeID: result.NodeID, Mode: result.Mode, Result: &result})
}

func (c *coordinator) finish(start time.Time) *model.RunResult {
	result := model.NewRunResult(c.results, time.Since(start))
	c.publish(events.Event{Type: events.RunFinished, Run: result})
	return result
}

func (c *coordinator) publish(event events.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(c.ctx, event); err != nil {
		c.log.Warn("publish event failed", "event_type", string(event.Type), "error", err.Error())
	}
}
