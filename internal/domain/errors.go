package domain

import (
	"errors"
	"fmt"
)

// ============================================================
// Typed errors
// ============================================================
//
// Stores return ErrNotFound for missing rows and wrap backend failures in
// ErrExternalService. The dialogue engine answers ErrNotFound and
// ErrValidation with a corrective reply; anything else becomes the apology
// with the support contact.

// ErrNotFound indicates a catalog row or order does not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// IsNotFound reports whether err wraps an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// ErrExternalService indicates a failed call to a store or mail backend.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the breaker of a backend rejected the call.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("%s unavailable: circuit open", e.Service)
}

// ErrValidation carries the user-facing message of a rejected slot value.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Message
}

// ErrUnauthorized indicates rejected webhook credentials.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
