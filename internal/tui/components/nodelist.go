package components

import (
	"github.com/alexisbeaulieu97/monorun/internal/model"
)

// NodeEntry is one row of the node list.
type NodeEntry struct {
	ID     string
	Result model.NodeResult
	// Running is set while an executor works on the node.
	Running bool
}

// NodeList keeps run rows in plan order.
type NodeList struct {
	entries []NodeEntry
}

// NewNodeList builds the list. Identifiers missing from results are pending.
func NewNodeList(order []string, results map[string]model.NodeResult, running map[string]bool) NodeList {
	entries := make([]NodeEntry, 0, len(order))
	for _, id := range order {
		res, ok := results[id]
		if !ok {
			res = model.NodeResult{NodeID: id, State: model.StatePending, Executor: model.NoExecutor}
		}
		entries = append(entries, NodeEntry{ID: id, Result: res, Running: running[id]})
	}
	return NodeList{entries: entries}
}

// Entries returns a copy of the rows.
func (l NodeList) Entries() []NodeEntry {
	clone := make([]NodeEntry, len(l.entries))
	copy(clone, l.entries)
	return clone
}

// InState returns the identifiers whose result is in one of states.
func (l NodeList) InState(states ...model.NodeState) []string {
	var ids []string
	for _, entry := range l.entries {
		for _, s := range states {
			if entry.Result.State == s {
				ids = append(ids, entry.ID)
				break
			}
		}
	}
	return ids
}
