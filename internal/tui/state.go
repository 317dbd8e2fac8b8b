package tui

import (
	"github.com/alexisbeaulieu97/monorun/internal/model"
)

// Maps are copied on write: Bubbletea hands value models around and earlier
// copies must not observe later updates.

func cloneFlags(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneResults(in map[string]model.NodeResult) map[string]model.NodeResult {
	out := make(map[string]model.NodeResult, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
