package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionBusy is returned when another operation on the same
	// session is still in flight.
	ErrSessionBusy = errors.New("session busy")

	// ErrSessionComplete is returned for mutations after the session ended.
	ErrSessionComplete = errors.New("session complete")

	// ErrSessionNotFound is returned for an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAttemptNotFound is returned for an unknown attempt ID.
	ErrAttemptNotFound = errors.New("attempt not found")

	// ErrStepOutOfRange is returned when revisiting a step not yet reached.
	ErrStepOutOfRange = errors.New("step out of range")
)

// InvalidTransitionError is returned when an operation is not allowed in
// the session's current phase. It fails the request, not the session.
type InvalidTransitionError struct {
	Op     string
	Phase  Phase
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("%s not allowed in phase %s", e.Op, e.Phase)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap lets errors.Is(err, ErrSessionComplete) match operations
// rejected because the session has ended.
func (e *InvalidTransitionError) Unwrap() error {
	if e.Phase == PhaseComplete {
		return ErrSessionComplete
	}
	return nil
}
