package core

import (
	"errors"
	"fmt"
)

// ValidationError rejects a malformed input before any state changes.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid wraps err as a ValidationError on field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// ProtectedEntityError is returned when a regular user edits or deletes a default entity.
type ProtectedEntityError struct {
	Kind string
	ID   string
	Name string
}

func (e *ProtectedEntityError) Error() string {
	return fmt.Sprintf("%s %q is protected", e.Kind, e.Name)
}

// NotFoundError reports an id absent from the store.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// UpstreamError wraps a failure of an external collaborator.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ErrVersionConflict is returned by a persister when a newer snapshot of the
// owner was already saved.
var ErrVersionConflict = errors.New("snapshot version conflict")
