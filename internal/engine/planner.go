package engine

import (
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/monorun/internal/model"
)

// ExecutionPlan groups an execution set into dependency levels. It is used to
// preview a run without executing anything.
type ExecutionPlan struct {
	Levels []ExecutionLevel
}

// ExecutionLevel is a set of nodes whose in-set dependencies all belong to
// earlier levels.
type ExecutionLevel struct {
	Nodes []PlannedNode
}

// PlannedNode describes one node of a plan.
type PlannedNode struct {
	ID        string
	Mode      model.Mode
	Seeded    bool
	DependsOn []string
}

// GeneratePlan converts an execution set into a plan grouped by level.
func GeneratePlan(set *ExecutionSet) (*ExecutionPlan, error) {
	if set == nil {
		return nil, fmt.Errorf("execution set cannot be nil")
	}

	nodes := make(map[string]*Node, set.Len())
	for id, item := range set.Items {
		nodes[id] = item.Node
	}

	ids, err := levelsOf(nodes, func(n *Node) bool {
		_, ok := set.Items[n.ID]
		return ok
	})
	if err != nil {
		return nil, err
	}

	levels := make([]ExecutionLevel, 0, len(ids))
	for _, levelIDs := range ids {
		level := ExecutionLevel{Nodes: make([]PlannedNode, 0, len(levelIDs))}
		for _, id := range levelIDs {
			item := set.Items[id]
			level.Nodes = append(level.Nodes, PlannedNode{
				ID:        id,
				Mode:      item.Mode,
				Seeded:    item.Seeded,
				DependsOn: append([]string(nil), item.DependsOn...),
			})
		}
		levels = append(levels, level)
	}

	return &ExecutionPlan{Levels: levels}, nil
}

// Len returns the number of planned nodes.
func (p *ExecutionPlan) Len() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, level := range p.Levels {
		n += len(level.Nodes)
	}
	return n
}

// String renders a human readable summary of the plan.
func (p *ExecutionPlan) String() string {
	if p == nil {
		return ""
	}

	var b strings.Builder
	for i, level := range p.Levels {
		ids := make([]string, 0, len(level.Nodes))
		for _, node := range level.Nodes {
			label := node.ID
			if node.Mode == model.ModeCheckThenRun {
				label += " (check first)"
			}
			ids = append(ids, label)
		}
		fmt.Fprintf(&b, "Level %d (%d nodes): %s\n", i, len(level.Nodes), strings.Join(ids, ", "))
	}
	return b.String()
}
