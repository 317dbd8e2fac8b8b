package engine

import (
	"fmt"
	"sort"

	"github.com/alexisbeaulieu97/monorun/internal/service"
	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

// Node represents a vertex in the dependency graph.
type Node struct {
	ID   string
	Step service.ServiceStep
	// Dir is the working directory of the owning service.
	Dir        string
	DependsOn  []*Node
	Dependents []*Node
}

// DroppedEdge is a step-derived dependency whose target node does not exist
// because the service does not implement that step. From depends on To.
type DroppedEdge struct {
	From string
	To   string
}

func (d DroppedEdge) String() string {
	return fmt.Sprintf("%s -> %s", d.From, d.To)
}

// Graph holds every resolved node of a project and the topological levels.
type Graph struct {
	Nodes   map[string]*Node
	Levels  [][]string
	Dropped []DroppedEdge
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode inserts a resolved step as a vertex.
func (g *Graph) AddNode(step service.ServiceStep, dir string) (*Node, error) {
	if step.ID == "" {
		return nil, monoerrors.NewValidationError("nodes", "node id cannot be empty", nil)
	}

	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}

	if _, exists := g.Nodes[step.ID]; exists {
		return nil, monoerrors.NewValidationError("nodes", fmt.Sprintf("duplicate node id %q", step.ID), nil)
	}

	node := &Node{ID: step.ID, Step: step, Dir: dir}
	g.Nodes[step.ID] = node
	return node, nil
}

// AddEdge records that "to" depends on "from".
func (g *Graph) AddEdge(from, to string) error {
	source, ok := g.Nodes[from]
	if !ok {
		return monoerrors.NewValidationError("nodes", fmt.Sprintf("unknown dependency %q", from), nil)
	}

	target, ok := g.Nodes[to]
	if !ok {
		return monoerrors.NewValidationError("nodes", fmt.Sprintf("unknown dependency target %q", to), nil)
	}

	source.Dependents = append(source.Dependents, target)
	target.DependsOn = append(target.DependsOn, source)
	return nil
}

// Node returns a vertex by identifier.
func (g *Graph) Node(id string) (*Node, bool) {
	if g == nil {
		return nil, false
	}
	node, ok := g.Nodes[id]
	return node, ok
}

// IDs returns every node identifier, sorted.
func (g *Graph) IDs() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DependenciesOf returns the direct dependencies of a node.
func (g *Graph) DependenciesOf(id string) ([]string, error) {
	node, ok := g.Node(id)
	if !ok {
		return nil, unknownNode(id)
	}
	return nodeIDs(node.DependsOn), nil
}

// DependentsOf returns the nodes directly depending on a node.
func (g *Graph) DependentsOf(id string) ([]string, error) {
	node, ok := g.Node(id)
	if !ok {
		return nil, unknownNode(id)
	}
	return nodeIDs(node.Dependents), nil
}

// TransitiveDependenciesOf returns every node reachable through dependency edges.
func (g *Graph) TransitiveDependenciesOf(id string) ([]string, error) {
	node, ok := g.Node(id)
	if !ok {
		return nil, unknownNode(id)
	}
	return closure(node, func(n *Node) []*Node { return n.DependsOn }), nil
}

// TransitiveDependentsOf returns every node reachable through reverse edges.
func (g *Graph) TransitiveDependentsOf(id string) ([]string, error) {
	node, ok := g.Node(id)
	if !ok {
		return nil, unknownNode(id)
	}
	return closure(node, func(n *Node) []*Node { return n.Dependents }), nil
}

// DetectCycle runs a depth-first search over dependency edges and returns the
// identifiers on the first back edge found, first identifier repeated at the
// end. It returns nil for an acyclic graph.
func (g *Graph) DetectCycle() []string {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(g.Nodes))
	var stack []string
	var cycle []string

	var visit func(*Node) bool
	visit = func(node *Node) bool {
		state[node.ID] = visiting
		stack = append(stack, node.ID)

		for _, dep := range node.DependsOn {
			switch state[dep.ID] {
			case done:
				continue
			case visiting:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep.ID {
						cycle = append(append([]string(nil), stack[i:]...), dep.ID)
						break
					}
				}
				return true
			default:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[node.ID] = done
		return false
	}

	for _, id := range g.IDs() {
		if state[id] != unvisited {
			continue
		}
		if visit(g.Nodes[id]) {
			return cycle
		}
	}
	return nil
}

// TopologicalSort computes the graph levels using Kahn's algorithm.
func (g *Graph) TopologicalSort() error {
	levels, err := levelsOf(g.Nodes, func(n *Node) bool { return true })
	if err != nil {
		return err
	}
	g.Levels = levels
	return nil
}

// sortEdges orders adjacency lists by identifier so traversal is deterministic.
func (g *Graph) sortEdges() {
	for _, node := range g.Nodes {
		sort.Slice(node.DependsOn, func(i, j int) bool { return node.DependsOn[i].ID < node.DependsOn[j].ID })
		sort.Slice(node.Dependents, func(i, j int) bool { return node.Dependents[i].ID < node.Dependents[j].ID })
	}
}

// levelsOf groups the nodes accepted by include into dependency levels,
// ignoring edges to excluded nodes.
func levelsOf(nodes map[string]*Node, include func(*Node) bool) ([][]string, error) {
	indegree := make(map[string]int, len(nodes))
	for id, node := range nodes {
		if include(node) {
			indegree[id] = 0
		}
	}

	for id := range indegree {
		for _, dep := range nodes[id].Dependents {
			if _, ok := indegree[dep.ID]; ok {
				indegree[dep.ID]++
			}
		}
	}

	var queue []string
	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	var levels [][]string

	for len(queue) > 0 {
		currentLevel := queue
		sort.Strings(currentLevel)
		levels = append(levels, append([]string(nil), currentLevel...))

		var nextLevel []string
		for _, id := range currentLevel {
			processed++
			for _, dependent := range nodes[id].Dependents {
				if _, ok := indegree[dependent.ID]; !ok {
					continue
				}
				indegree[dependent.ID]--
				if indegree[dependent.ID] == 0 {
					nextLevel = append(nextLevel, dependent.ID)
				}
			}
		}

		queue = nextLevel
	}

	if processed != len(indegree) {
		return nil, monoerrors.NewValidationError("nodes", "cycle detected while sorting graph", nil)
	}

	return levels, nil
}

func closure(start *Node, next func(*Node) []*Node) []string {
	seen := make(map[string]struct{})
	queue := append([]*Node(nil), next(start)...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if _, ok := seen[node.ID]; ok {
			continue
		}
		seen[node.ID] = struct{}{}
		queue = append(queue, next(node)...)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
	}
	sort.Strings(ids)
	return ids
}

func unknownNode(id string) error {
	return monoerrors.NewValidationError("nodes", fmt.Sprintf("unknown node %q", id), nil)
}
