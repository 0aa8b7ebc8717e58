package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable classification of a control-plane
// failure. The transport maps kinds to HTTP status codes; engines and
// callers branch on them with KindOf.
type ErrorKind string

const (
	KindUnauthenticated    ErrorKind = "unauthenticated"
	KindForbidden          ErrorKind = "forbidden"
	KindRoleEscalation     ErrorKind = "role_escalation"
	KindNotFound           ErrorKind = "not_found"
	KindValidation         ErrorKind = "validation"
	KindBusy               ErrorKind = "busy"
	KindTargetBusy         ErrorKind = "target_busy"
	KindNotDeployed        ErrorKind = "not_deployed"
	KindNoPreviousVersion  ErrorKind = "no_previous_version"
	KindPreviousUnhealthy  ErrorKind = "previous_unhealthy"
	KindUnhealthy          ErrorKind = "unhealthy"
	KindPortExhausted      ErrorKind = "port_exhausted"
	KindHealthTimeout      ErrorKind = "health_timeout"
	KindTransport          ErrorKind = "transport"
	KindTimeout            ErrorKind = "timeout"
	KindNonzeroExit        ErrorKind = "nonzero_exit"
	KindDeadlineExceeded   ErrorKind = "deadline_exceeded"
	KindInvariantViolation ErrorKind = "invariant_violation"
	KindInternal           ErrorKind = "internal"
)

// Error is the control plane's typed error. It wraps an optional cause so
// errors.Is/As keep working through it.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E constructs a typed error with a formatted message.
func E(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a typed error around a cause.
func Wrap(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain; untyped errors classify
// as internal.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind ErrorKind) bool { return err != nil && KindOf(err) == kind }
