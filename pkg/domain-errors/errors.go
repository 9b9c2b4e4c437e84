// Package domainerrors provides coded errors so callers branch on meaning
// instead of matching error strings. Services wrap sentinel errors from
// stores into coded errors; transport translates codes into HTTP statuses.
package domainerrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeStoreFailure Code = "store_failure"
	CodeUpstream     Code = "upstream_unavailable"
	CodeInternal     Code = "internal"
)

type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the domain code from an error chain. Unrecognized errors
// map to CodeInternal so transport never leaks raw error detail.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}
