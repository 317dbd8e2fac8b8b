package engine

import (
	"fmt"

	"github.com/alexisbeaulieu97/monorun/internal/service"
	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

// BuildDAG constructs the dependency graph over every resolved step of every
// service. Step-derived dependencies on steps a service does not implement are
// dropped and listed in Graph.Dropped. Service-level dependencies on unknown
// nodes and dependency cycles are errors.
func BuildDAG(services []*service.Service) (*Graph, error) {
	graph := NewGraph()

	for _, svc := range services {
		if svc == nil {
			continue
		}
		for _, step := range svc.Nodes() {
			if _, err := graph.AddNode(step, svc.Dir); err != nil {
				return nil, err
			}
		}
	}

	for _, id := range graph.IDs() {
		node := graph.Nodes[id]
		added := make(map[string]struct{})

		for _, dep := range node.Step.StepDependsOn {
			if _, ok := graph.Nodes[dep]; !ok {
				graph.Dropped = append(graph.Dropped, DroppedEdge{From: id, To: dep})
				continue
			}
			if err := addEdgeOnce(graph, added, dep, id); err != nil {
				return nil, err
			}
		}

		for _, dep := range node.Step.ServiceDependsOn {
			if _, ok := graph.Nodes[dep]; !ok {
				field := fmt.Sprintf("%s.steps.%s.depends_on", node.Step.Service, node.Step.Step)
				return nil, monoerrors.NewValidationError(field, fmt.Sprintf("%s depends on unknown node %q", id, dep), nil)
			}
			if err := addEdgeOnce(graph, added, dep, id); err != nil {
				return nil, err
			}
		}
	}

	graph.sortEdges()

	if cycle := graph.DetectCycle(); len(cycle) > 0 {
		return nil, monoerrors.NewCycleError(cycle)
	}

	if err := graph.TopologicalSort(); err != nil {
		return nil, err
	}

	return graph, nil
}

func addEdgeOnce(graph *Graph, added map[string]struct{}, from, to string) error {
	if _, ok := added[from]; ok {
		return nil
	}
	added[from] = struct{}{}
	return graph.AddEdge(from, to)
}
