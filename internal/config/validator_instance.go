package config

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	stepNamePattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	recipeNamePattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+(/[A-Za-z0-9_.-]+)*$`)
)

// validatorInstance configures and returns the shared validator instance used across the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("step_name", func(fl validator.FieldLevel) bool {
			return stepNamePattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("recipe_name", func(fl validator.FieldLevel) bool {
			return recipeNamePattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("service_name", func(fl validator.FieldLevel) bool {
			return IsServiceName(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// IsServiceName reports whether name is a valid slash-qualified service name.
// "." and ".." segments are rejected.
func IsServiceName(name string) bool {
	if !serviceNamePattern.MatchString(name) {
		return false
	}
	for _, segment := range splitService(name) {
		if segment == "." || segment == ".." {
			return false
		}
	}
	return true
}

// IsStepName reports whether name is a valid step name.
func IsStepName(name string) bool {
	return stepNamePattern.MatchString(name)
}
