// Package apperr defines the error taxonomy shared by the API boundary
// and the run orchestrator. Every error surfaced to a caller carries a
// stable machine-readable kind plus a human-readable message.
package apperr

import (
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
)

// Kind is the machine-readable error class.
type Kind string

const (
	// KindInput marks a malformed request; rejected synchronously with
	// no run created.
	KindInput Kind = "input_error"
	// KindCollaborator marks a failure in an external collaborator
	// (extractor, ledger, narrative, packager).
	KindCollaborator Kind = "collaborator_error"
	// KindNotFound marks an unknown run id.
	KindNotFound Kind = "not_found"
	// KindState marks an operation invalid for the run's current status.
	KindState Kind = "state_error"
)

// Error pairs a kind with an underlying error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error from a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: eris.New(msg)}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: eris.Errorf(format, args...)}
}

// Wrap classifies an existing error, preserving its chain.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: eris.Wrap(err, msg)}
}

// KindOf returns the kind of the first classified error in the chain,
// or KindCollaborator for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindCollaborator
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API boundary returns.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindState:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
