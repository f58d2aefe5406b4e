package veloq

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors. Typed errors below match them with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("veloq: entity not found")

	// ErrNotSingular is returned when a query that expects exactly one result
	// returns zero or multiple results.
	ErrNotSingular = errors.New("veloq: entity not singular")

	// ErrUnresolvableTable is returned when a table reference is used outside
	// of every statement that declares it.
	ErrUnresolvableTable = errors.New("veloq: unresolvable table reference")

	// ErrInvalidExpression is returned for malformed expression trees.
	ErrInvalidExpression = errors.New("veloq: invalid expression")

	// ErrCodec is returned when a scalar value cannot be encoded or decoded.
	ErrCodec = errors.New("veloq: codec failure")

	// ErrFetchPlanCycle is returned when computed properties depend on each other.
	ErrFetchPlanCycle = errors.New("veloq: computed property cycle")

	// ErrBackend is matched by every error returned from the execution bridge.
	ErrBackend = errors.New("veloq: backend execution failed")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	id    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("veloq: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("veloq: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a query expects a singular result
// but receives zero or multiple results.
type NotSingularError struct {
	label string
	count int
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("veloq: %s not singular (got %d results, expected 1)", e.label, e.count)
	}
	return fmt.Sprintf("veloq: %s not singular", e.label)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the result count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// NotLoadedError is returned when reading a property that the fetch shape
// did not ask for.
type NotLoadedError struct {
	prop string
}

// Error returns the error string.
func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("veloq: property %q was not loaded", e.prop)
}

// NewNotLoadedError returns a new NotLoadedError for the given property name.
func NewNotLoadedError(prop string) *NotLoadedError {
	return &NotLoadedError{prop: prop}
}

// IsNotLoaded returns true if the error is a NotLoadedError.
func IsNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	var e *NotLoadedError
	return errors.As(err, &e)
}

// UnresolvableTableError is returned when a table reference cannot be
// matched to any statement on the compilation stack.
type UnresolvableTableError struct {
	Entity string // Entity type of the reference
	Depth  int    // Number of statements searched
}

// Error returns the error string.
func (e *UnresolvableTableError) Error() string {
	return fmt.Sprintf("veloq: table of %s is not declared by any of the %d statements being compiled", e.Entity, e.Depth)
}

// Is reports whether the target error matches ErrUnresolvableTable.
func (e *UnresolvableTableError) Is(err error) bool {
	return err == ErrUnresolvableTable
}

// IsUnresolvableTable returns true if the error is an UnresolvableTableError.
func IsUnresolvableTable(err error) bool {
	return err != nil && errors.Is(err, ErrUnresolvableTable)
}

// InvalidExpressionError is returned when an expression tree is rejected
// before any SQL is sent to the backend.
type InvalidExpressionError struct {
	Expr string // Short description of the offending node
	Msg  string
}

// Error returns the error string.
func (e *InvalidExpressionError) Error() string {
	if e.Expr != "" {
		return fmt.Sprintf("veloq: invalid expression %s: %s", e.Expr, e.Msg)
	}
	return "veloq: invalid expression: " + e.Msg
}

// Is reports whether the target error matches ErrInvalidExpression.
func (e *InvalidExpressionError) Is(err error) bool {
	return err == ErrInvalidExpression
}

// NewInvalidExpressionError returns a new InvalidExpressionError.
func NewInvalidExpressionError(expr, format string, args ...any) *InvalidExpressionError {
	return &InvalidExpressionError{Expr: expr, Msg: fmt.Sprintf(format, args...)}
}

// IsInvalidExpression returns true if the error is an InvalidExpressionError.
func IsInvalidExpression(err error) bool {
	return err != nil && errors.Is(err, ErrInvalidExpression)
}

// CodecError wraps a failure to convert a scalar between its wire form
// and its application value.
type CodecError struct {
	Entity string
	Field  string
	Err    error
}

// Error returns the error string.
func (e *CodecError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("veloq: codec: %v", e.Err)
	}
	return fmt.Sprintf("veloq: codec %s.%s: %v", e.Entity, e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *CodecError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrCodec.
func (e *CodecError) Is(err error) bool {
	return err == ErrCodec
}

// NewCodecError returns a new CodecError.
func NewCodecError(entity, field string, err error) *CodecError {
	return &CodecError{Entity: entity, Field: field, Err: err}
}

// IsCodecError returns true if the error is a CodecError.
func IsCodecError(err error) bool {
	if err == nil {
		return false
	}
	var e *CodecError
	return errors.As(err, &e)
}

// FetchPlanCycleError is returned when computed properties of an entity
// depend on each other.
type FetchPlanCycleError struct {
	Entity string
	Cycle  []string
}

// Error returns the error string.
func (e *FetchPlanCycleError) Error() string {
	return fmt.Sprintf("veloq: computed properties of %s form a cycle: %s", e.Entity, strings.Join(e.Cycle, " -> "))
}

// Is reports whether the target error matches ErrFetchPlanCycle.
func (e *FetchPlanCycleError) Is(err error) bool {
	return err == ErrFetchPlanCycle
}

// IsFetchPlanCycle returns true if the error is a FetchPlanCycleError.
func IsFetchPlanCycle(err error) bool {
	return err != nil && errors.Is(err, ErrFetchPlanCycle)
}

// BackendExecutionError wraps an error returned by the execution bridge.
// The driver error is kept unchanged and reachable through Unwrap.
type BackendExecutionError struct {
	SQL string
	Err error
}

// Error returns the error string.
func (e *BackendExecutionError) Error() string {
	return fmt.Sprintf("veloq: executing %q: %v", e.SQL, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *BackendExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrBackend.
func (e *BackendExecutionError) Is(err error) bool {
	return err == ErrBackend
}

// NewBackendExecutionError returns a new BackendExecutionError.
func NewBackendExecutionError(sql string, err error) *BackendExecutionError {
	return &BackendExecutionError{SQL: sql, Err: err}
}

// IsBackendError returns true if the error came from the execution bridge.
func IsBackendError(err error) bool {
	return err != nil && errors.Is(err, ErrBackend)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("veloq: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// ValidationError represents an invalid entity metadata declaration.
type ValidationError struct {
	Name string // Entity or property name
	Err  error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("veloq: invalid declaration of %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "veloq: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("veloq: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// QueryError wraps a query error with additional context.
type QueryError struct {
	Entity string // Entity type being queried
	Op     string // Operation (e.g., "select", "fetch", "find")
	Err    error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("veloq: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("veloq: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a mutation error with additional context.
type MutationError struct {
	Entity string // Entity type being mutated
	Op     string // Operation (e.g., "insert", "update", "delete")
	Err    error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("veloq: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}

// PrivacyError represents a privacy policy violation.
type PrivacyError struct {
	Entity string
	Op     string // query or mutation
	Err    error  // Decision returned by the policy
}

// Error returns the error string.
func (e *PrivacyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("veloq: privacy denied %s on %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("veloq: privacy denied %s on %s", e.Op, e.Entity)
}

// Unwrap returns the policy decision.
func (e *PrivacyError) Unwrap() error {
	return e.Err
}

// NewPrivacyError returns a new PrivacyError.
func NewPrivacyError(entity, op string, err error) *PrivacyError {
	return &PrivacyError{Entity: entity, Op: op, Err: err}
}

// IsPrivacyError returns true if the error is a PrivacyError.
func IsPrivacyError(err error) bool {
	if err == nil {
		return false
	}
	var e *PrivacyError
	return errors.As(err, &e)
}
