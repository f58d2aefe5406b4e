package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/veloq"
)

// Issue is a single problem found in the entity declarations.
type Issue struct {
	Entity   string
	Property string
	Message  string
}

func (i *Issue) Error() string {
	switch {
	case i.Entity == "":
		return i.Message
	case i.Property != "":
		return fmt.Sprintf("%s.%s: %s", i.Entity, i.Property, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Entity, i.Message)
}

// ValidationResult holds the results of graph validation.
type ValidationResult struct {
	Errors   []*Issue
	Warnings []*Issue
}

func (r *ValidationResult) errorf(entity, prop, format string, args ...any) {
	r.Errors = append(r.Errors, &Issue{Entity: entity, Property: prop, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(entity, prop, format string, args ...any) {
	r.Warnings = append(r.Warnings, &Issue{Entity: entity, Property: prop, Message: fmt.Sprintf(format, args...)})
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the errors as a single error, each one a
// *veloq.ValidationError, or nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		name := e.Entity
		if e.Property != "" {
			name += "." + e.Property
		}
		errs[i] = veloq.NewValidationError(name, errors.New(e.Message))
	}
	return veloq.NewAggregateError(errs...)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, issues []*Issue) {
		if len(issues) == 0 {
			return
		}
		sb.WriteString(title)
		sb.WriteString(":\n")
		for _, i := range issues {
			sb.WriteString("  - ")
			sb.WriteString(i.Error())
			sb.WriteString("\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found.\n")
	}
	return sb.String()
}
