package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFlowNotFound is returned when a flow id cannot be resolved by a locator.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrStateNotFound is returned when a state id does not exist in its flow.
	ErrStateNotFound = errors.New("state not found")

	// ErrExecutionNotFound is returned when an execution key cannot be found in the store.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrInvalidDefinition is returned when a flow definition fails construction checks.
	ErrInvalidDefinition = errors.New("invalid flow definition")

	// ErrAlreadyStarted is returned by Start when the execution already has sessions.
	ErrAlreadyStarted = errors.New("execution already started")

	// ErrExecutionNotStarted is returned when an event is signaled before Start.
	ErrExecutionNotStarted = errors.New("execution not started")

	// ErrExecutionEnded is returned when an event is signaled after the root session ended.
	ErrExecutionEnded = errors.New("execution has ended")

	// ErrRequestInProgress is returned when Start or SignalEvent is re-entered
	// from inside a running request (e.g. by an action).
	ErrRequestInProgress = errors.New("request already in progress")

	// ErrNotPaused is returned when the current state cannot receive events.
	ErrNotPaused = errors.New("current state cannot receive events")

	// ErrScopeSealed is the panic value raised when writing to a scope whose
	// owning session has ended.
	ErrScopeSealed = errors.New("scope is sealed")

	// ErrNoActions is returned when an action state declares no actions.
	ErrNoActions = errors.New("action state has no actions")
)

// FlowExecutionError records where a failure surfaced during an execution.
// Action errors, listener vetoes and subflow failures are all wrapped in it.
type FlowExecutionError struct {
	FlowID  string
	StateID string
	Err     error
}

func (e *FlowExecutionError) Error() string {
	if e.StateID == "" {
		return fmt.Sprintf("flow '%s': %v", e.FlowID, e.Err)
	}
	return fmt.Sprintf("state '%s' of flow '%s': %v", e.StateID, e.FlowID, e.Err)
}

func (e *FlowExecutionError) Unwrap() error {
	return e.Err
}

// NoMatchingTransitionError is a configuration failure: the events signaled in a
// state matched none of its transitions. It is never handled by exception handlers.
type NoMatchingTransitionError struct {
	FlowID   string
	StateID  string
	EventIDs []string
	Criteria []string
}

func (e *NoMatchingTransitionError) Error() string {
	return fmt.Sprintf("no transition in state '%s' of flow '%s' matched event(s) [%s]; supported criteria are [%s]",
		e.StateID, e.FlowID, strings.Join(e.EventIDs, ", "), strings.Join(e.Criteria, ", "))
}

// RestoreError is returned when a persisted execution references a flow or state
// that no longer exists in the current definitions.
type RestoreError struct {
	FlowID  string
	StateID string
	Err     error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("cannot restore state '%s' of flow '%s': %v", e.StateID, e.FlowID, e.Err)
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}

// IsConfigurationFailure reports whether err signals a broken flow definition
// rather than a runtime failure.
func IsConfigurationFailure(err error) bool {
	var noMatch *NoMatchingTransitionError
	if errors.As(err, &noMatch) {
		return true
	}
	return errors.Is(err, ErrNoActions) ||
		errors.Is(err, ErrStateNotFound) ||
		errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, ErrInvalidDefinition)
}

// RootCause follows the Unwrap chain to the innermost error.
// For joined errors the first branch is followed.
func RootCause(err error) error {
	for err != nil {
		var next error
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			next = u.Unwrap()
		case interface{ Unwrap() []error }:
			if errs := u.Unwrap(); len(errs) > 0 {
				next = errs[0]
			}
		}
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}
