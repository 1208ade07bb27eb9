package models

import (
	"errors"
	"fmt"
)

// ErrDescriptorNotFound is returned when a local id is unknown to the registry.
var ErrDescriptorNotFound = errors.New("descriptor not found")

// PersistenceNotReadyError is returned when an operation needs a remote id the
// descriptor does not have yet. Callers retry once submission has finished.
type PersistenceNotReadyError struct {
	LocalID LocalID
}

func (e *PersistenceNotReadyError) Error() string {
	return fmt.Sprintf("descriptor %s has not been persisted yet", e.LocalID)
}

// Retryable is always true: the precondition resolves once upload completes.
func (e *PersistenceNotReadyError) Retryable() bool { return true }

// ValidationMismatchError reports that extraction identified a different
// document type than the requirement the file was uploaded for. A new upload
// is needed.
type ValidationMismatchError struct {
	LocalID  LocalID      `json:"-"`
	Expected DocumentType `json:"expected"`
	Observed DocumentType `json:"observed"`
}

func (e *ValidationMismatchError) Error() string {
	return fmt.Sprintf("descriptor %s: expected %s, extracted %s", e.LocalID, e.Expected, e.Observed)
}

func (e *ValidationMismatchError) Retryable() bool { return false }

// RemoteIDConflictError guards the assign-once rule on remote ids.
type RemoteIDConflictError struct {
	LocalID  LocalID
	Existing string
	Incoming string
}

func (e *RemoteIDConflictError) Error() string {
	return fmt.Sprintf("descriptor %s already mapped to %s, refusing %s", e.LocalID, e.Existing, e.Incoming)
}
