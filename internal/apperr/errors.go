// Package apperr defines the typed failures returned by the workflow and
// reporting layers. Callers branch on Code; store-level causes stay behind
// Unwrap and never appear in Error().
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION"
	CodeAuthorization     Code = "AUTHORIZATION"
	CodePrecondition      Code = "PRECONDITION"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeNotFound          Code = "NOT_FOUND"
	CodeLimitExceeded     Code = "LIMIT_EXCEEDED"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeInternal          Code = "INTERNAL"
)

type Error struct {
	Code    Code
	Field   string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(field, msg string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: msg}
}

func Forbidden(msg string) *Error { return New(CodeAuthorization, msg) }

func Precondition(msg string) *Error { return New(CodePrecondition, msg) }

func InvalidState(msg string) *Error { return New(CodeInvalidState, msg) }

func NotFound(entity string) *Error { return Newf(CodeNotFound, "%s not found", entity) }

func LimitExceeded(msg string) *Error { return New(CodeLimitExceeded, msg) }

func InsufficientFunds(msg string) *Error { return New(CodeInsufficientFunds, msg) }

// Internal hides cause behind a generic message.
func Internal(msg string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: msg, cause: cause}
}

// CodeOf returns the code carried by err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
