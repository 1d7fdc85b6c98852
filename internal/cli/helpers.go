package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/term"

	"github.com/aretw0/webflow/internal/logging"
	flowdocs "github.com/aretw0/webflow/pkg/adapters/loam"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}
	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sc.sigCh)
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Done():
		}
	}()
	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// WatchDefinitions logs every changed flow document until ctx is done. The
// locator drops its cache on each change, so the next request of a running
// execution binds to the new definition.
func WatchDefinitions(ctx context.Context, locator *flowdocs.Locator, logger *slog.Logger) error {
	changes, err := locator.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch definitions: %w", err)
	}
	go func() {
		for id := range changes {
			logger.Info("definition changed", logging.FlowID(id))
		}
	}()
	return nil
}

// WriteMetrics writes the gathered metrics in the Prometheus text format.
func WriteMetrics(w io.Writer, g prometheus.Gatherer) error {
	if g == nil {
		return nil
	}
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
