package runtime

import (
	"fmt"

	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/pkg/domain"
)

// ListenerError is returned when a listener vetoes an operation.
type ListenerError struct {
	Callback string
	Err      error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %s: %v", e.Callback, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}

// notify broadcasts a best-effort callback. A panicking listener is logged and
// the remaining listeners are still notified.
func (e *Execution) notify(callback string, fn func(domain.Listener)) {
	for _, l := range e.listeners {
		e.safeNotify(callback, l, fn)
	}
}

func (e *Execution) safeNotify(callback string, l domain.Listener, fn func(domain.Listener)) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("listener panicked",
				"callback", callback,
				"listener", fmt.Sprintf("%T", l),
				"panic", r,
			)
		}
	}()
	fn(l)
}

// veto broadcasts a callback that may abort the operation in progress.
// The first error, or panic, stops the broadcast.
func (e *Execution) veto(callback string, fn func(domain.Listener) error) error {
	for _, l := range e.listeners {
		if err := e.safeVeto(l, fn); err != nil {
			e.logger.Debug("listener vetoed", "callback", callback, logging.Error(err))
			return &ListenerError{Callback: callback, Err: err}
		}
	}
	return nil
}

func (e *Execution) safeVeto(l domain.Listener, fn func(domain.Listener) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = rerr
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(l)
}
