package pagemodules

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrNotFound indicates a content entity or module was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidType indicates a module type reference is unknown or inactive for new placement
	ErrInvalidType = errors.New("invalid module type")

	// ErrInvalidParent indicates a parent reference is unknown, belongs to other content, or would create a cycle
	ErrInvalidParent = errors.New("invalid parent module")

	// ErrInvalidData indicates a data value or custom attribute was rejected by the module type schema
	ErrInvalidData = errors.New("invalid module data")

	// ErrReorderFailed indicates one or more writes of a reorder batch did not complete
	ErrReorderFailed = errors.New("reorder failed")

	// ErrPersistenceUnavailable indicates a single write could not be completed by the persistence layer
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrTreeBusy indicates a structural mutation is already in flight for the tree
	ErrTreeBusy = errors.New("tree has a mutation in flight")
)

// ModuleError represents an error related to a module operation
type ModuleError struct {
	ModuleID uuid.UUID
	Op       string
	Err      error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module operation %s failed for module %s: %v", e.Op, e.ModuleID, e.Err)
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed single write. It matches
// ErrPersistenceUnavailable as well as the underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistenceUnavailable, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceUnavailable, e.Err}
}

// ReorderError is returned when a batch of order/parent writes partially
// failed. Tree holds the tree reloaded from storage after the failure; it is
// nil when the reload failed too, in which case the next read reloads.
type ReorderError struct {
	ContentID uuid.UUID
	Tree      *Tree
	Failed    int
	Total     int
	Err       error
}

func (e *ReorderError) Error() string {
	return fmt.Sprintf("%s for content %s: %d of %d writes failed: %v", ErrReorderFailed, e.ContentID, e.Failed, e.Total, e.Err)
}

func (e *ReorderError) Unwrap() []error {
	return []error{ErrReorderFailed, e.Err}
}

func notFound(kind string, id uuid.UUID) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}
