// Package gwerr defines the gateway's sentinel error kinds and the
// dispatch-error wrapper used to carry context (agent name, operation)
// through to the logging and HTTP layers without leaking internals to
// callers.
package gwerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, matched with errors.Is throughout the gateway.
var (
	ErrBanned              = errors.New("peer is banned")
	ErrAuthFailed          = errors.New("authentication failed")
	ErrFrameCorrupt        = errors.New("frame corrupt")
	ErrPeerGone            = errors.New("peer gone")
	ErrDispatchTimeout     = errors.New("dispatch timeout")
	ErrUnhealthyConnection = errors.New("unhealthy connection")
	ErrNotRegistered       = errors.New("agent not registered")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrBadRequest          = errors.New("bad request")
	ErrFatal               = errors.New("fatal error")
)

// DispatchError wraps a sentinel error with the agent name and operation
// that produced it, for richer log lines without changing errors.Is
// matching against the wrapped sentinel.
type DispatchError struct {
	Agent string
	Op    string
	Err   error
}

func (e *DispatchError) Error() string {
	if e.Agent == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: agent %q: %v", e.Op, e.Agent, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Wrap builds a DispatchError for the given operation and agent name.
func Wrap(op, agent string, err error) error {
	if err == nil {
		return nil
	}
	return &DispatchError{Agent: agent, Op: op, Err: err}
}

// StatusFor maps a gateway error kind to an HTTP status code.
// Unrecognized errors map to 500. The forward handler answers
// ErrNotRegistered (404) and ErrDispatchTimeout (500) itself and uses
// StatusFor for the remaining kinds.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrBanned):
		return 403
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrAuthFailed):
		return 401
	case errors.Is(err, ErrBadRequest):
		return 400
	case errors.Is(err, ErrNotRegistered):
		return 404
	case errors.Is(err, ErrDispatchTimeout):
		return 504
	case errors.Is(err, ErrPeerGone), errors.Is(err, ErrUnhealthyConnection):
		return 502
	case errors.Is(err, ErrFrameCorrupt), errors.Is(err, ErrFatal):
		return 500
	default:
		return 500
	}
}
