package engine

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/monorun/internal/config"
	"github.com/alexisbeaulieu97/monorun/internal/service"
)

type stepOption func(*service.ServiceStep)

func newStep(step, svc string, opts ...stepOption) service.ServiceStep {
	s := service.ServiceStep{
		ID:      service.NodeID(step, svc),
		Step:    step,
		Service: svc,
		Run:     service.Script{Kind: service.ScriptText, Text: "echo " + step},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func afterSteps(steps ...string) stepOption {
	return func(s *service.ServiceStep) {
		for _, step := range steps {
			s.StepDependsOn = append(s.StepDependsOn, service.NodeID(step, s.Service))
		}
	}
}

func afterServices(services ...string) stepOption {
	return func(s *service.ServiceStep) {
		for _, svc := range services {
			s.ServiceDependsOn = append(s.ServiceDependsOn, service.NodeID(s.Step, svc))
		}
	}
}

func onChanged(policy config.OnChanged) stepOption {
	return func(s *service.ServiceStep) { s.OnChanged = policy }
}

func skipRun() stepOption {
	return func(s *service.ServiceStep) { s.SkipRun = true }
}

func runScript(script service.Script) stepOption {
	return func(s *service.ServiceStep) { s.Run = script }
}

func checkScript(script service.Script) stepOption {
	return func(s *service.ServiceStep) { s.Check = script }
}

func text(body string) service.Script {
	return service.Script{Kind: service.ScriptText, Text: body}
}

func override(value bool) service.Script {
	return service.Script{Kind: service.ScriptOverride, Override: value}
}

// servicesOf groups steps into resolved services.
func servicesOf(steps ...service.ServiceStep) []*service.Service {
	byName := make(map[string]*service.Service)
	var names []string
	for _, step := range steps {
		svc, ok := byName[step.Service]
		if !ok {
			svc = &service.Service{Name: step.Service, Dir: "/srv/" + step.Service, Steps: make(map[string]service.ServiceStep)}
			byName[step.Service] = svc
			names = append(names, step.Service)
		}
		svc.Steps[step.Step] = step
	}
	sort.Strings(names)

	out := make([]*service.Service, 0, len(names))
	for _, name := range names {
		out = append(out, byName[name])
	}
	return out
}

func mustGraph(t *testing.T, steps ...service.ServiceStep) *Graph {
	t.Helper()

	graph, err := BuildDAG(servicesOf(steps...))
	require.NoError(t, err)
	return graph
}

func mustSelect(t *testing.T, graph *Graph, opts SelectOptions) *ExecutionSet {
	t.Helper()

	set, err := Select(graph, opts)
	require.NoError(t, err)
	return set
}

type scriptCall struct {
	NodeID string
	Phase  Phase
	Script string
}

// fakeRunner records every script it is asked to run. Exit codes default to
// zero and can be set per node and phase.
type fakeRunner struct {
	mu    sync.Mutex
	calls []scriptCall
	codes map[string]int
	hook  func(ctx context.Context, node *Node, phase Phase) (int, error)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{codes: make(map[string]int)}
}

func (f *fakeRunner) exit(id string, phase Phase, code int) *fakeRunner {
	f.codes[id+"/"+string(phase)] = code
	return f
}

func (f *fakeRunner) RunScript(ctx context.Context, node *Node, phase Phase, script string) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, scriptCall{NodeID: node.ID, Phase: phase, Script: script})
	code := f.codes[node.ID+"/"+string(phase)]
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, node, phase)
	}
	return code, nil
}

func (f *fakeRunner) called() []scriptCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scriptCall(nil), f.calls...)
}

func (f *fakeRunner) calledNodes() []string {
	var ids []string
	for _, call := range f.called() {
		ids = append(ids, call.NodeID+"/"+string(call.Phase))
	}
	sort.Strings(ids)
	return ids
}
