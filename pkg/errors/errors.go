package errors

import (
	"fmt"
	"strings"
)

// NotFoundError reports a configuration file that does not exist.
type NotFoundError struct {
	Path string
}

// NewNotFoundError constructs a NotFoundError.
func NewNotFoundError(path string) error {
	return &NotFoundError{Path: path}
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("config file not found: %s", e.Path)
}

// ReadError represents an I/O failure while reading a configuration file.
type ReadError struct {
	Path string
	Err  error
}

// NewReadError constructs a ReadError.
func NewReadError(path string, err error) error {
	return &ReadError{Path: path, Err: err}
}

func (e *ReadError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cannot read config file %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error.
func (e *ReadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MissingStepError is returned when a service or recipe references a step
// the project does not declare.
type MissingStepError struct {
	Step    string
	Service string
}

// NewMissingStepError constructs a MissingStepError.
func NewMissingStepError(step, service string) error {
	return &MissingStepError{Step: step, Service: service}
}

func (e *MissingStepError) Error() string {
	if e == nil {
		return ""
	}
	if e.Service != "" {
		return fmt.Sprintf("missing a step in the project configuration: %q (used by service %s)", e.Step, e.Service)
	}
	return fmt.Sprintf("missing a step in the project configuration: %q", e.Step)
}

// MissingRecipeError lists every recipe referenced but not found.
type MissingRecipeError struct {
	Names []string
}

// NewMissingRecipeError constructs a MissingRecipeError.
func NewMissingRecipeError(names []string) error {
	return &MissingRecipeError{Names: append([]string(nil), names...)}
}

func (e *MissingRecipeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("missing one or more recipes: %s", strings.Join(e.Names, ", "))
}

// CycleError names the identifiers forming a dependency cycle, in path order.
type CycleError struct {
	Path []string
}

// NewCycleError constructs a CycleError.
func NewCycleError(path []string) error {
	return &CycleError{Path: append([]string(nil), path...)}
}

func (e *CycleError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// RepositoryError reports a project root that is not a usable git repository.
type RepositoryError struct {
	Path string
	Err  error
}

// NewRepositoryError constructs a RepositoryError.
func NewRepositoryError(path string, err error) error {
	return &RepositoryError{Path: path, Err: err}
}

func (e *RepositoryError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("project is not a git repo at %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error.
func (e *RepositoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExecutionError represents a runtime failure while executing a node.
type ExecutionError struct {
	NodeID string
	Err    error
}

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(nodeID string, err error) error {
	return &ExecutionError{NodeID: nodeID, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.NodeID != "" {
		return fmt.Sprintf("execution error on %s: %v", e.NodeID, e.Err)
	}
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
