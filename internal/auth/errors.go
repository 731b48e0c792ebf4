package auth

import (
	"errors"
	"net/http"

	"github.com/redmonkez12/quick-flayer-api/internal/httputil"
)

// Kind classifies an authentication or authorization failure
type Kind int

const (
	// KindUnauthenticated means the guard could not establish who is calling
	KindUnauthenticated Kind = iota + 1
	// KindUnauthorized means a service operation rejected the caller's credentials or token
	KindUnauthorized
	// KindForbidden means the caller is known but lacks a required role
	KindForbidden
	// KindConflict means the request collides with existing state
	KindConflict
	// KindBadRequest means the request referenced something that does not exist or is malformed
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Error is a classified failure whose Message is safe to return to clients
type Error struct {
	Kind    Kind
	Message string
	// Code is the machine-readable code sent alongside Message
	Code string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrForbidden)
// holds regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks by kind
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrBadRequest      = &Error{Kind: KindBadRequest}
)

// Client-facing messages
const (
	MsgInvalidCredentials    = "Invalid credentials"
	MsgAccountInactive       = "User account is inactive"
	MsgEmailAlreadyExists    = "Email already registered"
	MsgUserNotFound          = "User not found"
	MsgInvalidToken          = "Invalid token"
	MsgMissingAuthentication = "Missing authentication"
	MsgInvalidAuthHeader     = "Invalid authorization header format"
)

func newError(kind Kind, message, code string) *Error {
	return &Error{Kind: kind, Message: message, Code: code}
}

func errInvalidCredentials() error {
	return newError(KindUnauthorized, MsgInvalidCredentials, httputil.CodeInvalidCredentials)
}

func errAccountInactive() error {
	return newError(KindUnauthorized, MsgAccountInactive, httputil.CodeAccountInactive)
}

func errEmailTaken() error {
	return newError(KindConflict, MsgEmailAlreadyExists, httputil.CodeEmailAlreadyExists)
}

func errUserNotFound() error {
	return newError(KindBadRequest, MsgUserNotFound, httputil.CodeUserNotFound)
}

func errTokenRejected() error {
	return newError(KindUnauthorized, MsgInvalidToken, httputil.CodeInvalidToken)
}

// StatusCode maps an error to the HTTP status sent to the client.
// Anything that is not a classified *Error is an internal failure.
func StatusCode(err error) int {
	var authErr *Error
	if !errors.As(err, &authErr) {
		return http.StatusInternalServerError
	}

	switch authErr.Kind {
	case KindUnauthenticated, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err to the client. Unclassified errors never leak their text.
func writeError(w http.ResponseWriter, err error) {
	var authErr *Error
	if errors.As(err, &authErr) {
		httputil.RespondErrorWithCode(w, authErr.Message, authErr.Code, StatusCode(err))
		return
	}
	httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
}
