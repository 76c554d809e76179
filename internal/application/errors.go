package application

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies gateway failures. The string values are sent to clients.
type Kind string

const (
	KindNotAuthorized   Kind = "not-authorized"
	KindNotFound        Kind = "not-found"
	KindUserNotFound    Kind = "user-not-found"
	KindAlreadyVerified Kind = "already-verified"
	KindValidation      Kind = "validation-error"
	KindInternal        Kind = "internal-error"
)

// Error is returned by every procedure and publication. Reason is safe to show to users;
// cause is logged and never leaves the server.
type Error struct {
	Kind    Kind              `json:"error"`
	Reason  string            `json:"reason"`
	Details map[string]string `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the kind onto a REST status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotAuthorized:
		return http.StatusUnauthorized
	case KindNotFound, KindUserNotFound:
		return http.StatusNotFound
	case KindAlreadyVerified:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func NotAuthorized(reason string) *Error {
	if reason == "" {
		reason = "You must be logged in"
	}
	return &Error{Kind: KindNotAuthorized, Reason: reason}
}

func NotFound(reason string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason}
}

func UserNotFound() *Error {
	return &Error{Kind: KindUserNotFound, Reason: "User not found"}
}

func AlreadyVerified(reason string) *Error {
	return &Error{Kind: KindAlreadyVerified, Reason: reason}
}

func Invalid(reason string, details map[string]string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Details: details}
}

// Internal hides cause behind a generic reason.
func Internal(reason string, cause error) *Error {
	if reason == "" {
		reason = "Internal server error"
	}
	return &Error{Kind: KindInternal, Reason: reason, cause: cause}
}

// AsError converts any error into an *Error, treating unknown errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("", err)
}
