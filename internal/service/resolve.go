// Package service turns the project, service and recipe configuration layers
// into resolved step:service nodes.
package service

import (
	"sort"

	"github.com/alexisbeaulieu97/monorun/internal/config"
	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

// stepBuilder accumulates one step of one service while layers are applied.
type stepBuilder struct {
	step        string
	project     config.ProjectStep
	serviceDeps []string
	check       config.Script
	run         config.Script
}

// fill copies check and run from a lower precedence layer where still empty.
func (b *stepBuilder) fill(check, run config.Script) {
	if b.check.IsEmpty() && !check.IsEmpty() {
		b.check = check
	}
	if b.run.IsEmpty() && !run.IsEmpty() {
		b.run = run
	}
}

// layers is the owned snapshot of every input needed for one resolution.
type layers struct {
	service  string
	project  map[string]config.ProjectStep
	explicit map[string]config.ServiceStep
	recipes  []map[string]config.RecipeStep
}

// Resolve merges the project step metadata, the service's own step entries
// and its recipes (in declared order) into a resolved Service.
//
// Explicit service scripts always win. Among recipes, the earlier listed
// recipe wins over a later one; a recipe only fills a script that is still
// empty. Recipes do not layer so that the last one listed overrides the
// others: list the most specific recipe first. Any step name not declared by
// the project fails with MissingStepError.
func Resolve(projectSteps map[string]config.ProjectStep, name string, cfg *config.Service, recipes []*config.Recipe) (*Service, error) {
	in, err := snapshot(projectSteps, name, cfg, recipes)
	if err != nil {
		return nil, err
	}
	return merge(in), nil
}

// snapshot copies every layer into owned values and checks step references.
func snapshot(projectSteps map[string]config.ProjectStep, name string, cfg *config.Service, recipes []*config.Recipe) (layers, error) {
	in := layers{
		service:  name,
		project:  make(map[string]config.ProjectStep, len(projectSteps)),
		explicit: make(map[string]config.ServiceStep),
		recipes:  make([]map[string]config.RecipeStep, 0, len(recipes)),
	}

	for stepName, step := range projectSteps {
		step.DependsOn = cloneStrings(step.DependsOn)
		in.project[stepName] = step
	}

	if cfg != nil {
		for _, stepName := range sortedStepNames(cfg.Steps) {
			if _, ok := in.project[stepName]; !ok {
				return layers{}, monoerrors.NewMissingStepError(stepName, name)
			}
			step := cfg.Steps[stepName]
			step.DependsOn = cloneStrings(step.DependsOn)
			step.Check = cloneScript(step.Check)
			step.Run = cloneScript(step.Run)
			in.explicit[stepName] = step
		}
	}

	for _, recipe := range recipes {
		steps := make(map[string]config.RecipeStep)
		if recipe != nil {
			for _, stepName := range sortedStepNames(recipe.Steps) {
				if _, ok := in.project[stepName]; !ok {
					return layers{}, monoerrors.NewMissingStepError(stepName, name)
				}
				step := recipe.Steps[stepName]
				steps[stepName] = config.RecipeStep{Check: cloneScript(step.Check), Run: cloneScript(step.Run)}
			}
		}
		in.recipes = append(in.recipes, steps)
	}

	return in, nil
}

// merge is a pure function of the snapshot.
func merge(in layers) *Service {
	builders := make(map[string]*stepBuilder, len(in.explicit))

	for stepName, step := range in.explicit {
		builders[stepName] = &stepBuilder{
			step:        stepName,
			project:     in.project[stepName],
			serviceDeps: step.DependsOn,
			check:       step.Check,
			run:         step.Run,
		}
	}

	for _, recipe := range in.recipes {
		for stepName, step := range recipe {
			b, ok := builders[stepName]
			if !ok {
				b = &stepBuilder{step: stepName, project: in.project[stepName]}
				builders[stepName] = b
			}
			b.fill(step.Check, step.Run)
		}
	}

	svc := &Service{Name: in.service, Steps: make(map[string]ServiceStep, len(builders))}
	for stepName, b := range builders {
		svc.Steps[stepName] = b.build(in.service)
	}
	return svc
}

func (b *stepBuilder) build(service string) ServiceStep {
	stepDeps := make([]string, 0, len(b.project.DependsOn))
	for _, dep := range b.project.DependsOn {
		stepDeps = append(stepDeps, NodeID(dep, service))
	}
	serviceDeps := make([]string, 0, len(b.serviceDeps))
	for _, dep := range b.serviceDeps {
		serviceDeps = append(serviceDeps, NodeID(b.step, dep))
	}
	sort.Strings(stepDeps)
	sort.Strings(serviceDeps)

	return ServiceStep{
		ID:               NodeID(b.step, service),
		Step:             b.step,
		Service:          service,
		StepDependsOn:    stepDeps,
		ServiceDependsOn: serviceDeps,
		OnChanged:        b.project.OnChanged,
		SkipRun:          b.project.SkipRun,
		Check:            ScriptFromConfig(b.check),
		Run:              ScriptFromConfig(b.run),
	}
}

func sortedStepNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneScript(s config.Script) config.Script {
	s.Lines = cloneStrings(s.Lines)
	return s
}
