package quill

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a collection is not registered.
	ErrNotFound = errors.New("quill: collection not found")

	// ErrUnknownField is returned when a query names a field the
	// collection does not have.
	ErrUnknownField = errors.New("quill: unknown field")

	// ErrOperator is returned when an operator does not apply to a
	// field's data type or value.
	ErrOperator = errors.New("quill: unsupported operator")

	// ErrNullValue is returned when null is used on a non-nullable field.
	ErrNullValue = errors.New("quill: null value on non-nullable field")

	// ErrPagination is returned for malformed page, limit or offset values.
	ErrPagination = errors.New("quill: malformed pagination value")

	// ErrNoValues is returned by inserts without items and updates
	// without values.
	ErrNoValues = errors.New("quill: no values")
)

// NotFoundError represents an error when a collection is not found.
type NotFoundError struct {
	label string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("quill: collection %q not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the collection name.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given collection.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ValidationError reports a field of a query that failed validation:
// an unknown name, an operator its type does not support, or a value
// that cannot be coerced.
type ValidationError struct {
	Name string // Field name
	Err  error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("quill: field %q: %s", e.Name, strings.TrimPrefix(e.Err.Error(), "quill: "))
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given field.
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

// StorageError wraps an error returned by the storage backend.
type StorageError struct {
	Err error
}

// Error returns the error string.
func (e *StorageError) Error() string {
	return "quill: storage: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError returns true if the error is a StorageError.
func IsStorageError(err error) bool {
	if err == nil {
		return false
	}
	var e *StorageError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return "quill: constraint failed: " + e.msg
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return &ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "quill: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "quill: %d errors occurred:", len(e.Errors))
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

// QueryError is the error of a result that failed with a runtime error.
type QueryError struct {
	Collection string
	Op         Op
	// Message is the runtime error reported in the result.
	Message string
	Err     error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	return fmt.Sprintf("quill: %s %s: %s", e.Op, e.Collection, e.Message)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// InputError is the error of a result that failed with input errors.
// Errors holds one entry per item; updates have a single entry.
type InputError struct {
	Collection string
	Op         Op
	Errors     []FieldErrors
}

// Error returns the error string.
func (e *InputError) Error() string {
	var names []string
	seen := make(map[string]bool)
	for _, fe := range e.Errors {
		for name := range fe {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return fmt.Sprintf("quill: %s %s: invalid input for %s", e.Op, e.Collection, strings.Join(names, ", "))
}

// IsInputError returns true if the error is an InputError.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	var e *InputError
	return errors.As(err, &e)
}

// PrivacyError represents a privacy policy violation.
type PrivacyError struct {
	Collection string
	Op         Op
	Rule       string // Rule that denied the operation
}

// Error returns the error string.
func (e *PrivacyError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("quill: privacy denied %s on %s (rule: %s)", e.Op, e.Collection, e.Rule)
	}
	return fmt.Sprintf("quill: privacy denied %s on %s", e.Op, e.Collection)
}

// NewPrivacyError returns a new PrivacyError.
func NewPrivacyError(collection string, op Op, rule string) *PrivacyError {
	return &PrivacyError{Collection: collection, Op: op, Rule: rule}
}

// IsPrivacyError returns true if the error is a PrivacyError.
func IsPrivacyError(err error) bool {
	if err == nil {
		return false
	}
	var e *PrivacyError
	return errors.As(err, &e)
}
