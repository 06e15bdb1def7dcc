package library

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned for documents that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID is returned for IDs that are not a single safe path component.
	ErrInvalidID = errors.New("invalid paper ID")
)

// ValidationError rejects a request with a client error status.
type ValidationError struct {
	Status int
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func badRequest(reason string) *ValidationError {
	return &ValidationError{Status: http.StatusBadRequest, Reason: reason}
}

func tooLarge(reason string) *ValidationError {
	return &ValidationError{Status: http.StatusRequestEntityTooLarge, Reason: reason}
}
