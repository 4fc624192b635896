package domain

import "errors" // errors.As for kind extraction

// Kind classifies a failure so callers can react without matching on messages
type Kind string

// Failure kinds returned by the service layer
const (
	KindDuplicateIdentity  Kind = "duplicate_identity"
	KindNotFound           Kind = "not_found"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindConflict           Kind = "conflict"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindInvalidOperation   Kind = "invalid_operation"
	KindInvalidInput       Kind = "invalid_input"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindDeliveryFailed     Kind = "delivery_failed"
	KindInternal           Kind = "internal"
)

// Error is a typed failure carrying a stable kind and a human readable message
type Error struct {
	Kind    Kind   // Machine checkable kind
	Message string // Message safe to show to the caller
	Err     error  // Underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so errors.Is(err, ErrNotFound) works
// for every not-found failure regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrDuplicateIdentity  = &Error{Kind: KindDuplicateIdentity, Message: "username or email already in use"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "wrong password"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "invalid or expired token"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInsufficientFunds  = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrInvalidOperation   = &Error{Kind: KindInvalidOperation, Message: "invalid operation"}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable, Message: "storage unavailable"}
	ErrDeliveryFailed     = &Error{Kind: KindDeliveryFailed, Message: "delivery failed"}
	ErrInternal           = &Error{Kind: KindInternal, Message: "internal error"}
)

// NewError builds a failure of the given kind
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a failure of the given kind around a cause
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a typed failure
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the caller-facing message of err
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
