package status

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of an instance creation.
type State string

// Lifecycle states.
const (
	StateUnknown   State = "unknown"
	StateCreating  State = "creating"
	StateCompleted State = "completed"
	StateError     State = "error"
)

var (
	// ErrAlreadyCreating is returned by Begin while a creation for the same
	// name is still running.
	ErrAlreadyCreating = errors.New("creation already in progress")

	// ErrInvalidTransition is returned for transitions the state machine
	// does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// checkBegin validates starting a new creation from the current state.
// Unknown, Completed and Error may all start over.
func checkBegin(from State) error {
	if from == StateCreating {
		return ErrAlreadyCreating
	}
	return nil
}

// checkTransition validates moving a running creation to its result.
// Only Creating may move, and only to Completed or Error.
func checkTransition(from, to State) error {
	if from != StateCreating {
		return fmt.Errorf("%w: cannot move to %s from %s", ErrInvalidTransition, to, from)
	}
	if !IsTerminal(to) {
		return fmt.Errorf("%w: %s is not a result state", ErrInvalidTransition, to)
	}
	return nil
}

// IsTerminal returns true for states a creation ends in.
func IsTerminal(s State) bool {
	return s == StateCompleted || s == StateError
}

// IsTransitioning returns true while a creation is running.
func IsTransitioning(s State) bool {
	return s == StateCreating
}
