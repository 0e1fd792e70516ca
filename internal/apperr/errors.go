// Package apperr defines the error kinds surfaced by the MedChain client
// workflows. Every kind is a concrete type so callers can branch with
// errors.As, and HTTPStatus maps them onto the API layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoSession is returned when a protected operation runs without a
// persisted session.
var ErrNoSession = errors.New("no active session")

// ValidationError reports a client-side input check that failed before any
// network call was made.
type ValidationError struct {
	Fields  []string
	Message string
}

// NewValidationError builds a ValidationError naming the missing or invalid fields.
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// TransportError is a network or HTTP failure talking to the remote gateway.
// Message carries the server-provided detail when there was one.
type TransportError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Status != 0 {
		msg = fmt.Sprintf("HTTP error! status: %d", e.Status)
	}
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// CredentialInvalidError means the remote verifier answered isValid=false.
type CredentialInvalidError struct{}

func (e *CredentialInvalidError) Error() string {
	return "credential is not valid"
}

// RecordNotFoundError is returned when a lookup has nothing to return.
type RecordNotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *RecordNotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "record"
	}
	if e.ID == "" {
		return kind + " not found"
	}
	return fmt.Sprintf("%s %q not found", kind, e.ID)
}

func (e *RecordNotFoundError) Unwrap() error { return e.Err }

// EnrollmentError wraps a failure of the remote identity service during
// patient enrollment. No local record exists when it is returned.
type EnrollmentError struct {
	Err error
}

func (e *EnrollmentError) Error() string {
	if e.Err == nil {
		return "enrollment failed"
	}
	return "enrollment failed: " + e.Err.Error()
}

func (e *EnrollmentError) Unwrap() error { return e.Err }

// LedgerError wraps a failed call to the Hedera network, such as a hospital
// account creation that was rejected or never reached consensus.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return e.Op + " failed: " + e.Err.Error()
}

func (e *LedgerError) Unwrap() error { return e.Err }

// MedicationNotFoundError means the payload did not resolve to a known
// medication.
type MedicationNotFoundError struct {
	ID  string
	Err error
}

func (e *MedicationNotFoundError) Error() string {
	return "medication not found or not authentic"
}

func (e *MedicationNotFoundError) Unwrap() error { return e.Err }

// HTTPStatus returns the status code the API layer should answer with for err.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		invalid    *CredentialInvalidError
		notFound   *RecordNotFoundError
		medMissing *MedicationNotFoundError
		enrollment *EnrollmentError
		ledger     *LedgerError
		transport  *TransportError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNoSession):
		return http.StatusUnauthorized
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notFound), errors.As(err, &medMissing):
		return http.StatusNotFound
	case errors.As(err, &enrollment), errors.As(err, &ledger), errors.As(err, &transport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
