package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexisbeaulieu97/monorun/internal/config"
	"github.com/alexisbeaulieu97/monorun/internal/model"
	"github.com/alexisbeaulieu97/monorun/internal/service"
	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

// SelectOptions describes which nodes a run should execute.
type SelectOptions struct {
	// Targets are "<step>:<service>" identifiers or bare service names.
	Targets []string
	// Changed lists services whose files changed since the requested revision.
	Changed []string
	// RunDeps pulls in the transitive dependencies of every seed.
	RunDeps bool
	// RunRDeps pulls in the transitive dependents of every seed.
	RunRDeps bool
}

// Selected is one node of an execution set.
type Selected struct {
	Node *Node
	Mode model.Mode
	// Seeded is false for nodes only added by dependency expansion.
	Seeded bool
	// DependsOn and Dependents are restricted to the execution set, sorted.
	DependsOn  []string
	Dependents []string
}

// InDegree is the number of in-set dependencies.
func (s *Selected) InDegree() int {
	return len(s.DependsOn)
}

// ExecutionSet is the subgraph selected for one run.
type ExecutionSet struct {
	Items map[string]*Selected
	ids   []string
}

// IDs returns the selected identifiers, sorted.
func (s *ExecutionSet) IDs() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.ids...)
}

// Len returns the number of selected nodes.
func (s *ExecutionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Get returns a selected node.
func (s *ExecutionSet) Get(id string) (*Selected, bool) {
	if s == nil {
		return nil, false
	}
	item, ok := s.Items[id]
	return item, ok
}

// Select builds the execution set for a run.
func Select(graph *Graph, opts SelectOptions) (*ExecutionSet, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph cannot be nil")
	}

	byService := make(map[string][]*Node)
	for _, id := range graph.IDs() {
		node := graph.Nodes[id]
		byService[node.Step.Service] = append(byService[node.Step.Service], node)
	}

	seeds := make(map[string]model.Mode)
	seed := func(id string, mode model.Mode) {
		if current, ok := seeds[id]; ok && current == model.ModeRun {
			return
		}
		seeds[id] = mode
	}

	for _, target := range opts.Targets {
		target = strings.TrimSpace(target)
		if strings.Contains(target, service.IDSeparator) {
			if _, ok := graph.Nodes[target]; !ok {
				return nil, monoerrors.NewValidationError("targets", fmt.Sprintf("unknown target %q", target), nil)
			}
			seed(target, model.ModeRun)
			continue
		}

		nodes, ok := byService[target]
		if !ok {
			return nil, monoerrors.NewValidationError("targets", fmt.Sprintf("unknown target %q", target), nil)
		}
		for _, node := range nodes {
			if node.Step.SkipRun {
				continue
			}
			seed(node.ID, model.ModeRun)
		}
	}

	for _, name := range opts.Changed {
		for _, node := range byService[name] {
			if node.Step.SkipRun {
				continue
			}
			switch node.Step.OnChanged {
			case config.OnChangedSkip:
				continue
			case config.OnChangedCheckFirst:
				seed(node.ID, model.ModeCheckThenRun)
			default:
				seed(node.ID, model.ModeRun)
			}
		}
	}

	selected := make(map[string]model.Mode, len(seeds))
	for id, mode := range seeds {
		selected[id] = mode
	}

	seedIDs := sortedModeKeys(seeds)
	expand := func(closure func(string) ([]string, error)) error {
		for _, id := range seedIDs {
			ids, err := closure(id)
			if err != nil {
				return err
			}
			for _, extra := range ids {
				if _, ok := selected[extra]; ok {
					continue
				}
				selected[extra] = expansionMode(graph.Nodes[extra].Step.OnChanged)
			}
		}
		return nil
	}

	if opts.RunDeps {
		if err := expand(graph.TransitiveDependenciesOf); err != nil {
			return nil, err
		}
	}
	if opts.RunRDeps {
		if err := expand(graph.TransitiveDependentsOf); err != nil {
			return nil, err
		}
	}

	set := &ExecutionSet{Items: make(map[string]*Selected, len(selected))}
	for id, mode := range selected {
		_, seeded := seeds[id]
		set.Items[id] = &Selected{Node: graph.Nodes[id], Mode: mode, Seeded: seeded}
	}

	for id, item := range set.Items {
		for _, dep := range item.Node.DependsOn {
			if _, ok := set.Items[dep.ID]; ok {
				item.DependsOn = append(item.DependsOn, dep.ID)
			}
		}
		for _, dependent := range item.Node.Dependents {
			if _, ok := set.Items[dependent.ID]; ok {
				item.Dependents = append(item.Dependents, dependent.ID)
			}
		}
		sort.Strings(item.DependsOn)
		sort.Strings(item.Dependents)
		set.ids = append(set.ids, id)
	}
	sort.Strings(set.ids)

	return set, nil
}

// expansionMode is the mode of a node pulled in only by expansion: it keeps
// its own policy instead of being forced to run.
func expansionMode(policy config.OnChanged) model.Mode {
	if policy == config.OnChangedRun {
		return model.ModeRun
	}
	return model.ModeCheckThenRun
}

func sortedModeKeys(m map[string]model.Mode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
