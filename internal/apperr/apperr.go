package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers. Every core operation fails with exactly one kind.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindUnauthorized  Kind = "unauthorized"
	KindForbidden     Kind = "forbidden"
	KindNotFound      Kind = "not_found"
	KindNotConfigured Kind = "not_configured"
	KindUnexpected    Kind = "unexpected"
)

// Error is the typed failure returned by the lifecycle services.
type Error struct {
	kind   Kind
	code   string
	fields map[string]string
	err    error
}

// New builds an error of the given kind. The code follows the "<operation>.<reason>" convention.
func New(kind Kind, operation, reason string, cause error) *Error {
	return &Error{
		kind: kind,
		code: fmt.Sprintf("%s.%s", operation, reason),
		err:  cause,
	}
}

// Validation builds a validation error carrying field-level detail.
func Validation(operation string, fields map[string]string) *Error {
	detail := make(map[string]string, len(fields))
	for field, message := range fields {
		detail[field] = message
	}
	return &Error{
		kind:   KindValidation,
		code:   fmt.Sprintf("%s.%s", operation, "invalid_input"),
		fields: detail,
	}
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Kind reports the failure classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// Code reports the operation-scoped failure code.
func (e *Error) Code() string {
	return e.code
}

// Fields returns field-level validation detail, if any.
func (e *Error) Fields() map[string]string {
	return e.fields
}

// KindOf extracts the kind from err. Errors not produced by this package are unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.kind
	}
	return KindUnexpected
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
