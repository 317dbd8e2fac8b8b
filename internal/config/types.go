package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultContainerImage is used when the project does not configure one.
const DefaultContainerImage = "ubuntu:20.04"

// Project represents the project configuration document at the repository root.
type Project struct {
	Name    string                 `yaml:"name" validate:"required,min=1,max=100"`
	Options ProjectOptions         `yaml:"options,omitempty"`
	Steps   map[string]ProjectStep `yaml:"steps,omitempty" validate:"dive,keys,step_name,endkeys"`
}

// ProjectOptions holds project-wide execution settings.
type ProjectOptions struct {
	ContainerImage string `yaml:"container_image,omitempty"`
	Workers        int    `yaml:"workers,omitempty" validate:"omitempty,min=1,max=256"`
}

// Image returns the configured container image or the default one.
func (o ProjectOptions) Image() string {
	if strings.TrimSpace(o.ContainerImage) == "" {
		return DefaultContainerImage
	}
	return o.ContainerImage
}

// ProjectStep declares an abstract step and its ordering relative to other
// steps of the same service.
type ProjectStep struct {
	DependsOn []string  `yaml:"depends_on,omitempty" validate:"dive,step_name"`
	SkipRun   bool      `yaml:"skip_run,omitempty"`
	OnChanged OnChanged `yaml:"on_changed,omitempty"`
}

// OnChanged decides what happens to a step when its service changed.
// The zero value is OnChangedRun.
type OnChanged int

const (
	// OnChangedRun always runs the step on changed services.
	OnChangedRun OnChanged = iota
	// OnChangedCheckFirst runs the check script and only runs the step when the check reports a change.
	OnChangedCheckFirst
	// OnChangedSkip ignores the step for changed services.
	OnChangedSkip
)

func (o OnChanged) String() string {
	switch o {
	case OnChangedRun:
		return "run"
	case OnChangedCheckFirst:
		return "check_first"
	case OnChangedSkip:
		return "skip"
	default:
		return fmt.Sprintf("on_changed(%d)", int(o))
	}
}

// ParseOnChanged converts the configuration spelling into an OnChanged value.
func ParseOnChanged(raw string) (OnChanged, error) {
	switch strings.TrimSpace(raw) {
	case "", "run":
		return OnChangedRun, nil
	case "check_first":
		return OnChangedCheckFirst, nil
	case "skip":
		return OnChangedSkip, nil
	default:
		return OnChangedRun, fmt.Errorf("unknown on_changed value %q (expected skip, check_first or run)", raw)
	}
}

// UnmarshalYAML decodes the string form of an on_changed policy.
func (o *OnChanged) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseOnChanged(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*o = parsed
	return nil
}

// MarshalYAML renders the policy using its configuration spelling.
func (o OnChanged) MarshalYAML() (any, error) {
	return o.String(), nil
}

// Service represents a service configuration file.
type Service struct {
	Recipes []string               `yaml:"recipes,omitempty" validate:"dive,recipe_name"`
	Steps   map[string]ServiceStep `yaml:"steps,omitempty" validate:"dive,keys,step_name,endkeys"`
}

// ServiceStep overrides a project step for one service.
type ServiceStep struct {
	// DependsOn lists other services whose same step must complete first.
	DependsOn []string `yaml:"depends_on,omitempty" validate:"dive,service_name"`
	Check     Script   `yaml:"check,omitempty"`
	Run       Script   `yaml:"run,omitempty"`
}

// Recipe is a reusable bundle of step scripts shared by services.
type Recipe struct {
	Steps map[string]RecipeStep `yaml:"steps,omitempty" validate:"dive,keys,step_name,endkeys"`
}

// RecipeStep holds the default scripts a recipe provides for one step.
type RecipeStep struct {
	Check Script `yaml:"check,omitempty"`
	Run   Script `yaml:"run,omitempty"`
}

// StepNames returns the project step names in sorted order.
func (p *Project) StepNames() []string {
	if p == nil {
		return nil
	}
	return sortedKeys(p.Steps)
}
