package pointsdomain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// ValidationError reports malformed input. It is always raised before a
// transaction is opened.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// ValidationFromErr converts ozzo validation errors into a ValidationError,
// prefixing every field key. Non-validation errors are returned unchanged.
func ValidationFromErr(prefix string, err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}

	out := &ValidationError{Fields: map[string]string{}}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, fieldErr := range fieldErrs {
			if fieldErr == nil {
				continue
			}
			out.Fields[prefix+field] = fieldErr.Error()
		}
		return out
	}

	key := strings.TrimSuffix(prefix, ".")
	if key == "" {
		key = "request"
	}
	out.Fields[key] = err.Error()
	return out
}

// Merge folds other's fields into e.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	for k, v := range other.Fields {
		e.Fields[k] = v
	}
}

// NotFoundError reports a participant, group or honor outside the
// organization. Raised inside a transaction, it aborts the whole call.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found in organization", e.Resource, e.ID)
}

// ConflictError reports a write that collides with existing state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Message
}

// InternalError wraps a storage or infrastructure failure.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// Kind names the taxonomy bucket of err for transports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation"
	case IsNotFound(err):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	default:
		return "internal"
	}
}
