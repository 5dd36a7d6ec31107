package client

import (
	"errors"
	"fmt"
)

// Category sentinels for service failures. Callers match them with
// errors.Is; the concrete *Error carries the message and status code.
var (
	// ErrValidation marks a request rejected for a missing or invalid
	// required field, surfaced to the caller for inline correction.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an operation on an id the server does not know.
	ErrNotFound = errors.New("task not found")
	// ErrNetwork marks a transport failure with no server response.
	ErrNetwork = errors.New("network error")
	// ErrServer marks a non-success response from the persistence layer.
	ErrServer = errors.New("server error")
	// ErrShape marks a response that does not match the envelope
	// convention. It also matches ErrServer.
	ErrShape = errors.New("malformed response")
)

// Error is the failure type returned by every TaskService operation.
type Error struct {
	Kind    error
	Message string
	Status  int
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.cause)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches the error's category sentinel. A ShapeError additionally
// matches ErrServer: a malformed envelope is handled like any other
// persistence-side failure.
func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrShape && target == ErrServer
}

func validationErr(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg, Status: 400}
}

func notFoundErr(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg, Status: 404}
}

func networkErr(err error) *Error {
	return &Error{Kind: ErrNetwork, cause: err}
}

func serverErr(status int, msg string) *Error {
	return &Error{Kind: ErrServer, Message: msg, Status: status}
}

func shapeErr(msg string) *Error {
	return &Error{Kind: ErrShape, Message: msg}
}
