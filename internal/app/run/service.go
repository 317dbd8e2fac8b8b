// Package run wires project loading, resolution, graph construction, run
// selection and scheduling behind the operations exposed by the CLI.
package run

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/alexisbeaulieu97/monorun/internal/engine"
	"github.com/alexisbeaulieu97/monorun/internal/events"
	"github.com/alexisbeaulieu97/monorun/internal/executor"
	"github.com/alexisbeaulieu97/monorun/internal/gitrepo"
	"github.com/alexisbeaulieu97/monorun/internal/logger"
	"github.com/alexisbeaulieu97/monorun/internal/model"
	"github.com/alexisbeaulieu97/monorun/internal/project"
)

// Isolation selects where scripts execute.
type Isolation string

const (
	// IsolationLocal runs scripts with the host shell.
	IsolationLocal Isolation = "local"
	// IsolationContainer runs scripts inside the project container image.
	IsolationContainer Isolation = "container"
)

// ParseIsolation validates a user supplied isolation name. Empty means local.
func ParseIsolation(raw string) (Isolation, error) {
	switch Isolation(strings.ToLower(strings.TrimSpace(raw))) {
	case "", IsolationLocal:
		return IsolationLocal, nil
	case IsolationContainer:
		return IsolationContainer, nil
	default:
		return "", fmt.Errorf("unknown executor %q (expected local or container)", raw)
	}
}

// Request describes one run.
type Request struct {
	// Root is the project root directory.
	Root string
	// Targets are "<step>:<service>" identifiers or bare service names.
	Targets []string
	// ChangedSince seeds every service changed since this revision.
	ChangedSince string
	RunDeps      bool
	RunRDeps     bool
	// Workers overrides the project worker count when positive.
	Workers   int
	Isolation Isolation
}

// Prepared is everything computed for a request before any script runs.
type Prepared struct {
	Project *project.Project
	Graph   *engine.Graph
	Set     *engine.ExecutionSet
	Plan    *engine.ExecutionPlan
	Changed []string
	Workers int
}

// Options configures a Service.
type Options struct {
	Logger *logger.Logger
	// Bus receives node and run events. A private bus is created when nil.
	Bus *events.Bus
	// Output receives script output, one prefixed line at a time. Nil discards it.
	Output io.Writer
	// Executor replaces the executor derived from the request isolation.
	Executor executor.Executor
}

// Service coordinates high-level run operations.
type Service struct {
	log      *logger.Logger
	bus      *events.Bus
	output   *executor.Output
	executor executor.Executor
}

// NewService constructs a run service.
func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(log)
	}
	return &Service{
		log:      log,
		bus:      bus,
		output:   executor.NewOutput(opts.Output),
		executor: opts.Executor,
	}
}

// Bus returns the event bus runs publish to.
func (s *Service) Bus() *events.Bus {
	return s.bus
}

// Load opens the project at root and builds the dependency graph over every
// service. The project must sit inside a git work tree; otherwise a
// RepositoryError is returned before any configuration is resolved.
func (s *Service) Load(ctx context.Context, root string) (*project.Project, *engine.Graph, error) {
	repo, err := gitrepo.Open(root)
	if err != nil {
		return nil, nil, err
	}

	proj, err := project.Open(root, repo, s.log)
	if err != nil {
		return nil, nil, err
	}

	services, err := proj.GetAllServices(ctx)
	if err != nil {
		return nil, nil, err
	}

	graph, err := engine.BuildDAG(services)
	if err != nil {
		return nil, nil, err
	}
	for _, edge := range graph.Dropped {
		s.log.Debug("dependency dropped, step not implemented by service", "from", edge.From, "to", edge.To)
	}

	s.log.Debug("graph built", "services", len(services), "nodes", len(graph.Nodes))
	return proj, graph, nil
}

// Prepare resolves the request into an execution set and its plan.
func (s *Service) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	proj, graph, err := s.Load(ctx, req.Root)
	if err != nil {
		return nil, err
	}

	var changed []string
	if since := strings.TrimSpace(req.ChangedSince); since != "" {
		changed, err = proj.ChangedServices(ctx, since)
		if err != nil {
			return nil, err
		}
	}

	set, err := engine.Select(graph, engine.SelectOptions{
		Targets:  req.Targets,
		Changed:  changed,
		RunDeps:  req.RunDeps,
		RunRDeps: req.RunRDeps,
	})
	if err != nil {
		return nil, err
	}

	plan, err := engine.GeneratePlan(set)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Project: proj,
		Graph:   graph,
		Set:     set,
		Plan:    plan,
		Changed: changed,
		Workers: workerCount(req.Workers, proj.Config.Options.Workers),
	}, nil
}

// Execute runs a prepared request. Script failures are reported in the
// result; an error means the run could not be carried out.
func (s *Service) Execute(ctx context.Context, prepared *Prepared, isolation Isolation) (*model.RunResult, error) {
	if prepared == nil {
		return nil, fmt.Errorf("prepared run cannot be nil")
	}

	exec, err := s.executorFor(prepared.Project, isolation)
	if err != nil {
		return nil, err
	}

	runner := &scriptRunner{
		exec:  exec,
		image: prepared.Project.Config.Options.Image(),
		root:  prepared.Project.Root,
		log:   s.log,
	}

	s.log.Info("run starting",
		"project", prepared.Project.Config.Name,
		"nodes", prepared.Set.Len(),
		"workers", prepared.Workers,
		"executor", string(isolation),
	)

	sub := s.bus.Subscribe(events.NodeFinished, s.logNodeFinished)
	defer sub.Unsubscribe()

	scheduler := engine.NewScheduler(runner,
		engine.WithWorkers(prepared.Workers),
		engine.WithPublisher(s.bus),
		engine.WithLogger(s.log),
	)
	result, err := scheduler.Run(ctx, prepared.Set)
	if err != nil {
		return nil, err
	}

	summary := result.Summary()
	s.log.Info("run finished",
		"success", result.Success,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"cancelled", summary.Cancelled,
		"duration", result.Duration.String(),
	)
	return result, nil
}

// Run prepares and executes a request.
func (s *Service) Run(ctx context.Context, req Request) (*Prepared, *model.RunResult, error) {
	prepared, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.Execute(ctx, prepared, req.Isolation)
	if err != nil {
		return prepared, nil, err
	}
	return prepared, result, nil
}

func (s *Service) executorFor(proj *project.Project, isolation Isolation) (executor.Executor, error) {
	if s.executor != nil {
		return s.executor, nil
	}
	switch isolation {
	case "", IsolationLocal:
		return &executor.Local{Output: s.output, Log: s.log}, nil
	case IsolationContainer:
		return &executor.Container{Root: proj.Root, Output: s.output, Log: s.log}, nil
	default:
		return nil, fmt.Errorf("unknown executor %q", isolation)
	}
}

func (s *Service) logNodeFinished(_ context.Context, event events.Event) error {
	if event.Result == nil {
		return nil
	}
	res := event.Result
	fields := []any{"node", res.NodeID, "state", string(res.State), "duration", res.Duration.String()}
	switch res.State {
	case model.StateFailed:
		s.log.Warn("node failed", append(fields, "reason", res.Message)...)
	case model.StateSkipped, model.StateCancelled:
		s.log.Info("node not run", append(fields, "reason", res.Message)...)
	default:
		s.log.Info("node finished", fields...)
	}
	return nil
}

// workerCount applies the worker precedence: request, then project option,
// then the number of CPUs.
func workerCount(requested, configured int) int {
	switch {
	case requested > 0:
		return requested
	case configured > 0:
		return configured
	default:
		return runtime.NumCPU()
	}
}

// scriptRunner adapts an executor to the scheduler.
type scriptRunner struct {
	exec  executor.Executor
	image string
	root  string
	log   *logger.Logger
}

func (r *scriptRunner) RunScript(ctx context.Context, node *engine.Node, phase engine.Phase, script string) (int, error) {
	outcome, err := r.exec.Execute(ctx, executor.Request{
		NodeID: node.ID,
		Image:  r.image,
		Env:    executor.NodeEnv(node.Step.Step, node.Step.Service, node.ID, r.root),
		Script: script,
		Dir:    node.Dir,
	})
	if err != nil {
		return -1, err
	}
	if !outcome.Success() && phase == engine.PhaseRun {
		r.log.Debug("script failed", "node", node.ID, "phase", string(phase), "exit_code", outcome.ExitCode, "output", outcome.Output)
	}
	return outcome.ExitCode, nil
}
