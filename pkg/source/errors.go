package source

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents transport-level failures (no connectivity,
	// timeouts, connection resets).
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassServer represents failures where the remote rejected the
	// request; carries the remote status code.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassExhaustionMisreport is raised by the coordinator when the
	// source returns two consecutive empty pages while its own metadata still
	// claims more data. Informational: the entry is terminated defensively.
	ErrorClassExhaustionMisreport ErrorClass = "exhaustion_misreport"
)

// Error is a fetch failure with enough context to render a message and a
// class for observability. The class is informational only: recovery is the
// same in every case (the caller retries deliberately).
type Error struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("source %s error (status %d): %s: %v", e.Class, e.StatusCode, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("source %s error: %s: %v", e.Class, e.Message, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("source %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("source %s error: %s", e.Class, e.Message)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NetworkError wraps a transport failure.
func NetworkError(msg string, err error) *Error {
	return &Error{Class: ErrorClassNetwork, Message: msg, Err: err}
}

// ServerError wraps a remote rejection with its status code.
func ServerError(status int, msg string) *Error {
	return &Error{Class: ErrorClassServer, StatusCode: status, Message: msg}
}

// Classify returns the class of err. Errors that are not *Error are assumed
// to be transport failures.
func Classify(err error) ErrorClass {
	var se *Error
	if errors.As(err, &se) {
		return se.Class
	}
	return ErrorClassNetwork
}
