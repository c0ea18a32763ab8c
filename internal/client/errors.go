package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed call to the agent
type ErrorKind int

const (
	// KindNetwork means no response reached the agent
	KindNetwork ErrorKind = iota + 1
	// KindAuth means the session is missing or no longer valid
	KindAuth
	// KindValidation means the agent rejected malformed input
	KindValidation
	// KindServer means the agent reported a failure
	KindServer
	// KindDenied means the agent refused the request as unsafe or forbidden
	KindDenied
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind
var (
	ErrNetwork    = errors.New("agent unreachable")
	ErrAuth       = errors.New("authentication required")
	ErrValidation = errors.New("invalid request")
	ErrServer     = errors.New("agent error")
	ErrDenied     = errors.New("request denied")
)

// Error is returned by every Client method that fails
type Error struct {
	Kind    ErrorKind
	Op      string // e.g. "GET /api/processes"
	Status  int    // HTTP status, 0 for network failures
	Message string // agent supplied message, verbatim
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s", e.Op, http.StatusText(e.Status))
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(k ErrorKind) error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindAuth:
		return ErrAuth
	case KindValidation:
		return ErrValidation
	case KindServer:
		return ErrServer
	case KindDenied:
		return ErrDenied
	}
	return nil
}

// kindForStatus maps a non-2xx status onto the error taxonomy
func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusForbidden:
		return KindDenied
	default:
		return KindServer
	}
}

// Message returns the agent supplied message carried by err, or "" when the
// failure has none (network errors, unparsable bodies, foreign errors).
func Message(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return ""
}

// MessageOr returns Message(err) or fallback when there is none
func MessageOr(err error, fallback string) string {
	if msg := Message(err); msg != "" {
		return msg
	}
	return fallback
}

// IsAuth reports whether err invalidated the session
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}
