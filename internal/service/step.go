package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexisbeaulieu97/monorun/internal/config"
)

// IDSeparator separates the step and service parts of a node identifier.
const IDSeparator = ":"

// NodeID builds the canonical "<step>:<service>" identifier.
func NodeID(step, service string) string {
	return step + IDSeparator + service
}

// SplitNodeID splits a canonical identifier into its step and service parts.
func SplitNodeID(id string) (step, service string, ok bool) {
	step, service, ok = strings.Cut(id, IDSeparator)
	if !ok || step == "" || service == "" {
		return "", "", false
	}
	return step, service, true
}

// ServiceStep is a resolved step:service pair, the unit of execution.
type ServiceStep struct {
	ID      string
	Step    string
	Service string

	// StepDependsOn holds the project step dependencies qualified with this service.
	StepDependsOn []string
	// ServiceDependsOn holds the service dependencies qualified with this step.
	ServiceDependsOn []string

	OnChanged config.OnChanged
	SkipRun   bool

	Check Script
	Run   Script
}

// Dependencies returns the union of both dependency kinds, sorted.
func (s ServiceStep) Dependencies() []string {
	seen := make(map[string]struct{}, len(s.StepDependsOn)+len(s.ServiceDependsOn))
	deps := make([]string, 0, len(s.StepDependsOn)+len(s.ServiceDependsOn))
	for _, group := range [][]string{s.StepDependsOn, s.ServiceDependsOn} {
		for _, dep := range group {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			deps = append(deps, dep)
		}
	}
	sort.Strings(deps)
	return deps
}

func (s ServiceStep) String() string {
	return s.ID
}

// Service is a resolved service with its steps keyed by step name.
type Service struct {
	Name string
	// Dir is the service directory on disk. It is set by whoever located the
	// service configuration; resolution leaves it empty.
	Dir   string
	Steps map[string]ServiceStep
}

// Step returns the resolved step by name.
func (s *Service) Step(name string) (ServiceStep, bool) {
	if s == nil {
		return ServiceStep{}, false
	}
	step, ok := s.Steps[name]
	return step, ok
}

// StepNames returns the implemented step names in sorted order.
func (s *Service) StepNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Steps))
	for name := range s.Steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Nodes returns the resolved steps ordered by identifier.
func (s *Service) Nodes() []ServiceStep {
	names := s.StepNames()
	nodes := make([]ServiceStep, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, s.Steps[name])
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

func (s *Service) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%d steps)", s.Name, len(s.Steps))
}
