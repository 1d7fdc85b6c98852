package domain

import (
	"errors"
	"reflect"
)

// Request scope keys under which a handled failure is exposed to the recovery state.
const (
	StateExceptionKey     = "stateException"
	RootCauseExceptionKey = "rootCauseException"
)

// ExceptionHandler maps a failure to a recovery state.
// Handlers are evaluated in registration order and the first match wins.
type ExceptionHandler struct {
	Name        string
	Matches     func(err error) bool
	TargetState string
}

// CanHandle reports whether the handler applies to err.
func (h *ExceptionHandler) CanHandle(err error) bool {
	return h.Matches != nil && h.Matches(err)
}

func (h *ExceptionHandler) String() string {
	return h.Name + " -> " + h.TargetState
}

// HandleAs matches any error in the chain assignable to T.
// An interface T matches every error implementing it, which is the
// Go counterpart of registering a supertype.
func HandleAs[T error](targetState string) *ExceptionHandler {
	return &ExceptionHandler{
		Name: reflect.TypeFor[T]().String(),
		Matches: func(err error) bool {
			var target T
			return errors.As(err, &target)
		},
		TargetState: targetState,
	}
}

// HandleIs matches any error in the chain equal to sentinel.
func HandleIs(sentinel error, targetState string) *ExceptionHandler {
	return &ExceptionHandler{
		Name: sentinel.Error(),
		Matches: func(err error) bool {
			return errors.Is(err, sentinel)
		},
		TargetState: targetState,
	}
}

// HandleAny matches every failure.
func HandleAny(targetState string) *ExceptionHandler {
	return &ExceptionHandler{
		Name:        "*",
		Matches:     func(error) bool { return true },
		TargetState: targetState,
	}
}

// FindHandler returns the first handler in handlers that can handle err.
func FindHandler(handlers []*ExceptionHandler, err error) *ExceptionHandler {
	for _, h := range handlers {
		if h.CanHandle(err) {
			return h
		}
	}
	return nil
}
