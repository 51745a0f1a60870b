package engine

import (
	"fmt"

	"github.com/ShunsukeHayashi/workflowd/internal/store"
)

// ErrNotFound reports an unknown workflow or task ID. Aliased from the
// store so callers can errors.Is against either package.
var ErrNotFound = store.ErrNotFound

// InvalidStatusError reports a task-update request whose status string
// does not parse into a known task status. The update is rejected with
// no mutation.
type InvalidStatusError struct {
	// Status is the offending raw string.
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status: %q", e.Status)
}

// CollaboratorError wraps a failure raised by an external collaborator.
type CollaboratorError struct {
	// Collaborator names the failing collaborator (generator, decomposer,
	// agent_manager, executor).
	Collaborator string
	// Err is the underlying failure.
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Err)
}

// Unwrap exposes the underlying failure to errors.Is/As.
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
