package config

import (
	"slices"
	"sort"
)

type visitState uint8

const (
	unvisited visitState = iota
	onPath
	done
)

// detectCycle walks the project step graph in name order and returns the
// first step-level cycle it meets, closed by repeating its first step.
// Dependencies on undeclared steps are ignored here; validation reports them.
func detectCycle(steps map[string]ProjectStep) []string {
	state := make(map[string]visitState, len(steps))
	var path []string

	var walk func(name string) []string
	walk = func(name string) []string {
		state[name] = onPath
		path = append(path, name)

		deps := slices.Clone(steps[name].DependsOn)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, declared := steps[dep]; !declared {
				continue
			}
			switch state[dep] {
			case onPath:
				start := slices.Index(path, dep)
				return append(slices.Clone(path[start:]), dep)
			case unvisited:
				if cycle := walk(dep); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	names := make([]string, 0, len(steps))
	for name := range steps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if state[name] != unvisited {
			continue
		}
		if cycle := walk(name); cycle != nil {
			return cycle
		}
	}
	return nil
}
