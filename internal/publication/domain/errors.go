package domain

import "fmt"

// ValidationError indicates a malformed or incomplete request caught before a
// batch could be built. It aborts the current prepare call.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// UploadError indicates a content-store upload returned a non-success status
// or failed outright. Callers must not proceed to batch building.
type UploadError struct {
	Target string // "asset" or "document"
	Status int    // HTTP status when the response was received, zero otherwise
	Err    error
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	if e == nil {
		return "upload error"
	}
	if e.Status != 0 {
		return fmt.Sprintf("upload %s: unexpected status %d", e.Target, e.Status)
	}
	return fmt.Sprintf("upload %s: %v", e.Target, e.Err)
}

// Unwrap returns the underlying error.
func (e *UploadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SubmissionError indicates the transaction boundary reported non-success for
// one stage. It freezes that stage only; prior completed stages keep their
// results.
type SubmissionError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	if e == nil {
		return "submission error"
	}
	return fmt.Sprintf("submit %s batch: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// VerificationTimeout indicates the event index never produced a match within
// the attempt budget. It is non-fatal to the publication session.
type VerificationTimeout struct {
	Attempts int
}

// Error implements the error interface.
func (e *VerificationTimeout) Error() string {
	if e == nil {
		return "verification timeout"
	}
	return fmt.Sprintf("event not found in index after %d attempts", e.Attempts)
}

// DomainConflict indicates a domain candidate was no longer available at
// confirm time. The stage stays retryable with a different name.
type DomainConflict struct {
	Name string
}

// Error implements the error interface.
func (e *DomainConflict) Error() string {
	if e == nil {
		return "domain conflict"
	}
	return fmt.Sprintf("domain %q is already registered", e.Name)
}
