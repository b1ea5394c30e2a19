package service

import (
	"errors"
	"fmt"
)

// ErrSpawn is returned when the operating system refuses to create the
// process (missing executable, permission denied).
var ErrSpawn = errors.New("process could not be spawned")

// ErrTermination is returned only when forced termination itself fails,
// leaving the child potentially orphaned.
var ErrTermination = errors.New("process could not be terminated")

type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return ErrSpawn
}

type TerminationError struct {
	PID int
	Err error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("terminate pid %d: %v", e.PID, e.Err)
}

func (e *TerminationError) Unwrap() error {
	return ErrTermination
}
