package lua

import (
	"errors"
	"fmt"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call runs past its timeout.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrBadRegistration is returned for malformed summarizer registrations.
	ErrBadRegistration = errors.New("invalid summarizer registration")
)

// ScriptError reports a failure while loading a script.
type ScriptError struct {
	Path string
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("lua script %s: %v", e.Path, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
