package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConflict          Kind = "Conflict"
	KindValidation        Kind = "ValidationError"
	KindQuotaExceeded     Kind = "QuotaExceeded"
	KindNotFound          Kind = "NotFound"
	KindGuestUnreachable  Kind = "GuestUnreachable"
	KindIncompatibleAgent Kind = "IncompatibleAgent"
	KindInfrastructure    Kind = "InfrastructureError"
	KindDeadline          Kind = "Deadline"
	KindUnauthorized      Kind = "Unauthorized"
)

// Error carries a kind for the API mapping and a stable reason for callers
// that need to tell two validation failures apart.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", e.Reason, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, reason, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, ReasonClusterTaskConflict, format, args...)
}

func Validation(reason, format string, args ...interface{}) *Error {
	return New(KindValidation, reason, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(KindUnauthorized, "", format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, "", format, args...)
}

func QuotaExceeded(format string, args ...interface{}) *Error {
	return New(KindQuotaExceeded, "", format, args...)
}

func Infrastructure(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindInfrastructure, cause, format, args...)
}

// KindOf returns the kind of the first *Error in the chain, or "" when the
// chain carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}

	return ""
}
