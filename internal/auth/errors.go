package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Generic failure messages. They never say why a check failed.
const (
	MessageInvalidSession          = "invalid or expired session"
	MessageInsufficientPermissions = "insufficient permissions"
	MessageMalformedRequest        = "malformed request"
	messageInternal                = "internal error"
)

// Kind classifies a gate failure.
type Kind int

const (
	KindUnauthenticated Kind = iota + 1
	KindForbidden
	KindMalformedRequest
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "UNAUTHENTICATED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindMalformedRequest:
		return "MALFORMED_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// Status is the HTTP status a kind maps to.
func (k Kind) Status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindMalformedRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed failure returned by every gate stage. Message is safe to
// show to clients; the reason and cause are for logs only.
type Error struct {
	Kind    Kind
	Status  int
	Message string

	reason string
	cause  error
}

var (
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated, Status: http.StatusUnauthorized, Message: MessageInvalidSession}
	ErrForbidden        = &Error{Kind: KindForbidden, Status: http.StatusForbidden, Message: MessageInsufficientPermissions}
	ErrMalformedRequest = &Error{Kind: KindMalformedRequest, Status: http.StatusBadRequest, Message: MessageMalformedRequest}
)

func (e *Error) Error() string {
	if e.reason != "" {
		return e.Kind.String() + ": " + e.reason
	}
	return e.Kind.String() + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrForbidden)
// works regardless of reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func (e *Error) Unwrap() error { return e.cause }

// Reason is the internal diagnostic for logs.
func (e *Error) Reason() string { return e.reason }

func unauthenticated(reason string, cause error) *Error {
	return &Error{Kind: KindUnauthenticated, Status: http.StatusUnauthorized, Message: MessageInvalidSession, reason: reason, cause: cause}
}

func forbidden(reason string) *Error {
	return &Error{Kind: KindForbidden, Status: http.StatusForbidden, Message: MessageInsufficientPermissions, reason: reason}
}

// Malformed builds a MALFORMED_REQUEST error for endpoints rejecting a body or
// parameter. An empty message falls back to the generic one.
func Malformed(message string) *Error {
	if message == "" {
		message = MessageMalformedRequest
	}
	return &Error{Kind: KindMalformedRequest, Status: http.StatusBadRequest, Message: message, reason: message}
}

// Deny returns the uniform FORBIDDEN error. Endpoints use it when a
// tenant-scoped lookup finds nothing, so absence and denial look the same.
func Deny(reason string) error { return forbidden(reason) }

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// DecisionOf converts the result of a gate call into a Decision. A nil error
// is an allowed decision; errors that are not *Error become a 500.
func DecisionOf(err error) Decision {
	if err == nil {
		return Decision{Allowed: true, Status: http.StatusOK}
	}
	var ae *Error
	if errors.As(err, &ae) {
		return Decision{Status: ae.Status, Message: ae.Message}
	}
	return Decision{Status: http.StatusInternalServerError, Message: messageInternal}
}

// WriteError renders err as {"success": false, "message": ...}.
func WriteError(w http.ResponseWriter, err error) {
	d := DecisionOf(err)
	if d.Allowed {
		d = Decision{Status: http.StatusInternalServerError, Message: messageInternal}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": d.Message,
	})
}
