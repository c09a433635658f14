package authz

import (
	"errors"
	"net/http"
)

// Machine-readable error codes exposed at the REST boundary.
const (
	CodeAccessDenied = "ACCESS_DENIED"
	CodeRequestError = "REQUEST_ERROR"
)

// AccessError means the caller is correctly identified but lacks sufficient
// permission or scope for the requested operation and target. Translated to
// a 403 at the HTTP boundary.
type AccessError struct {
	Message string
}

func (e *AccessError) Error() string {
	return e.Message
}

// Code returns the machine-readable error code.
func (e *AccessError) Code() string { return CodeAccessDenied }

// Status returns the HTTP status hint.
func (e *AccessError) Status() int { return http.StatusForbidden }

// Denied builds an AccessError with an optional message.
func Denied(message string) *AccessError {
	if message == "" {
		message = "access denied"
	}
	return &AccessError{Message: message}
}

// RequestError means the request itself is semantically invalid independent
// of who is asking: a bad type filter, an attempt to mutate an immutable
// field, a tag/character mismatch. Translated to a 400 at the HTTP boundary.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// Code returns the machine-readable error code.
func (e *RequestError) Code() string { return CodeRequestError }

// Status returns the HTTP status hint.
func (e *RequestError) Status() int { return http.StatusBadRequest }

// BadRequest builds a RequestError with an optional message.
func BadRequest(message string) *RequestError {
	if message == "" {
		message = "there was an error with your request"
	}
	return &RequestError{Message: message}
}

// IsAccessDenied reports whether err is (or wraps) an AccessError.
func IsAccessDenied(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}

// IsRequestError reports whether err is (or wraps) a RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}
