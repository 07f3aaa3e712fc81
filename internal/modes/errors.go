package modes

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match them with errors.Is; the typed errors below wrap them.
var (
	ErrDuplicateSlug      = errors.New("duplicate slug")
	ErrNotFound           = errors.New("mode not found")
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrCapabilityMismatch = errors.New("capability mismatch")
	ErrActivationFailed   = errors.New("activation failed")
	ErrDeactivationFailed = errors.New("deactivation failed")
	ErrSwitchFailed       = errors.New("switch failed")
	ErrHookTimeout        = errors.New("hook timed out")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrNoActiveMode       = errors.New("no active mode")
	ErrExecutionFailed    = errors.New("execution failed")
)

// ValidationError reports which profile field failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid profile: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidProfile.
func (e *ValidationError) Unwrap() error { return ErrInvalidProfile }

// HookError records which lifecycle hook failed for which profile.
// Kind is ErrActivationFailed or ErrDeactivationFailed.
type HookError struct {
	Slug string
	Hook Hook
	Kind error
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s: %s hook %s: %v", e.Slug, e.Kind, e.Hook, e.Err)
}

// Unwrap exposes both the failure kind and the underlying cause.
func (e *HookError) Unwrap() []error { return []error{e.Kind, e.Err} }

// TransitionError is returned when an operation is attempted from a state that does
// not allow it.
type TransitionError struct {
	Slug string
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %s to %s", e.Slug, e.From, e.To)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
