package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownConnector indicates a connector name with no registration.
	ErrUnknownConnector = errors.New("unknown connector")

	// ErrUnknownSource indicates a raw record from a source the normalizer
	// has no adapter for. New sources require an explicit adapter.
	ErrUnknownSource = errors.New("unknown source schema")

	// ErrRunInProgress indicates a collection run is already active
	// for the connector.
	ErrRunInProgress = errors.New("collection run in progress")
)

// ValidationError indicates a record that violates an Event invariant.
// The caller must skip the record and continue the batch; a validation
// failure never aborts a run.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// IsValidation checks whether err is a record-level validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransientSourceError indicates a recoverable source failure
// (network, timeout, rate limit). The orchestrator retries these
// with exponential backoff.
type TransientSourceError struct {
	Source string
	Err    error
}

func (e *TransientSourceError) Error() string {
	return fmt.Sprintf("%s: transient source error: %v", e.Source, e.Err)
}

func (e *TransientSourceError) Unwrap() error { return e.Err }

// StructuralSourceError indicates a parse or schema mismatch in source
// data. These are recorded per-record and never retried.
type StructuralSourceError struct {
	Source string
	Err    error
}

func (e *StructuralSourceError) Error() string {
	return fmt.Sprintf("%s: structural source error: %v", e.Source, e.Err)
}

func (e *StructuralSourceError) Unwrap() error { return e.Err }

// StorageFault indicates a write failure in the persisted store.
// It surfaces to the orchestrator as retryable; it is never
// silently dropped.
type StorageFault struct {
	Op  string
	Err error
}

func (e *StorageFault) Error() string {
	return fmt.Sprintf("storage fault during %s: %v", e.Op, e.Err)
}

func (e *StorageFault) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried with backoff.
// Both transient source failures and storage faults qualify.
func IsTransient(err error) bool {
	var tse *TransientSourceError
	if errors.As(err, &tse) {
		return true
	}
	var sf *StorageFault
	return errors.As(err, &sf)
}

// IsStructural reports whether err is a non-retryable source data problem.
func IsStructural(err error) bool {
	var sse *StructuralSourceError
	return errors.As(err, &sse)
}
