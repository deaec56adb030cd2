package axtree

import (
	"errors"
	"fmt"
)

// Code is the machine-readable error code surfaced to callers.
type Code string

const (
	CodeNotFound        Code = "ELEMENT_NOT_FOUND"
	CodeIndexOutOfRange Code = "INDEX_OUT_OF_RANGE"
	CodeInvalidElement  Code = "INVALID_ELEMENT"
	CodeTimeout         Code = "TIMEOUT"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInternal        Code = "INTERNAL"
)

// Error is the {code, message} object returned across the command boundary.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound)
// works whatever the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrIndexOutOfRange = &Error{Code: CodeIndexOutOfRange}
	ErrInvalidElement  = &Error{Code: CodeInvalidElement}
	ErrTimeout         = &Error{Code: CodeTimeout}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
)

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError converts any error into the wire shape. Errors that are not
// already an *Error are reported as INTERNAL.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}
