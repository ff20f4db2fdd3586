package common

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeForbidden    Code = "forbidden"
	CodeInvalidState Code = "invalid_state"
	CodeValidation   Code = "validation"
	CodePartialMatch Code = "partial_match"
	CodeUnauthorized Code = "unauthorized"
	CodeRateLimited  Code = "rate_limited"
	CodeInternal     Code = "internal"
)

// MaxDetails caps how many offending identifiers an error carries back to the caller.
const MaxDetails = 5

type Error struct {
	Code    Code              `json:"code"`
	Reason  string            `json:"reason,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details []string          `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func NewError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func NewValidationError(message string, fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: message, Fields: fields}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) WithReason(reason string) *Error {
	e.Reason = reason
	return e
}

// WithDetails attaches up to MaxDetails identifiers.
func (e *Error) WithDetails(items ...string) *Error {
	if len(items) > MaxDetails {
		items = items[:MaxDetails]
	}
	e.Details = append([]string(nil), items...)
	return e
}

func Is(err error, code Code) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Code == code
	}
	return false
}

func HasReason(err error, reason string) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Reason == reason
	}
	return false
}

func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
