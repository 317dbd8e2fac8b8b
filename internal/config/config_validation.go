package config

import (
	"fmt"

	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

// ValidateProject performs structural and cross-field validation on a project configuration.
func ValidateProject(cfg *Project) error {
	if cfg == nil {
		return monoerrors.NewValidationError("project", "configuration is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	for _, name := range sortedKeys(cfg.Steps) {
		step := cfg.Steps[name]
		seen := make(map[string]struct{}, len(step.DependsOn))
		for _, dep := range step.DependsOn {
			if dep == name {
				return monoerrors.NewValidationError(fieldForStep(name, "depends_on"), "step cannot depend on itself", nil)
			}
			if _, ok := cfg.Steps[dep]; !ok {
				return monoerrors.NewValidationError(fieldForStep(name, "depends_on"), fmt.Sprintf("references unknown step %q", dep), nil)
			}
			if _, dup := seen[dep]; dup {
				return monoerrors.NewValidationError(fieldForStep(name, "depends_on"), fmt.Sprintf("duplicate dependency %q", dep), nil)
			}
			seen[dep] = struct{}{}
		}
	}

	if cycle := detectCycle(cfg.Steps); len(cycle) > 0 {
		return monoerrors.NewCycleError(cycle)
	}

	return nil
}

// ValidateService checks the shape of a service configuration. References to
// project steps are resolved later, when the service is merged with the project.
func ValidateService(cfg *Service) error {
	if cfg == nil {
		return monoerrors.NewValidationError("service", "configuration is nil", nil)
	}

	if err := validatorInstance().Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	seen := make(map[string]struct{}, len(cfg.Recipes))
	for i, recipe := range cfg.Recipes {
		if _, dup := seen[recipe]; dup {
			return monoerrors.NewValidationError(fmt.Sprintf("recipes[%d]", i), fmt.Sprintf("duplicate recipe %q", recipe), nil)
		}
		seen[recipe] = struct{}{}
	}

	return nil
}

// ValidateRecipe checks the shape of a recipe configuration.
func ValidateRecipe(cfg *Recipe) error {
	if cfg == nil {
		return monoerrors.NewValidationError("recipe", "configuration is nil", nil)
	}

	if err := validatorInstance().Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	return nil
}
