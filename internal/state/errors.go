package state

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidArgument marks caller misuse such as writing a nil state.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoInstallation is returned by Update when no document exists.
	ErrNoInstallation = errors.New("no installation found")
	// ErrCorruptState marks a document that exists but fails the schema.
	ErrCorruptState = errors.New("installation state is corrupt")
	// ErrPhaseRegression is returned when a write would move the phase backwards.
	ErrPhaseRegression = errors.New("installation phase cannot move backwards")
)

// ValidationError lists every invariant a state breaks.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid installation state: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}
