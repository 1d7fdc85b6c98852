package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/internal/runtime"
	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/dsl"
)

func failing() domain.Action {
	return domain.ActionFunc(func(context.Context, domain.RequestContext) (*domain.Event, error) {
		return nil, errors.New("inventory offline")
	})
}

func checkoutFlow() *domain.Flow {
	b := dsl.New("checkout")
	b.View("cart").On("buy", "reserve")
	b.Action("reserve", failing()).Otherwise("cart")
	b.View("sorry").On("leave", "gone")
	b.End("gone")
	b.Global().Handle(domain.HandleAny("sorry"))
	return b.MustBuild()
}

func drive(t *testing.T, listeners ...domain.Listener) {
	t.Helper()
	ctx := context.Background()
	exec := runtime.New(checkoutFlow(), runtime.WithKey("k-1"), runtime.WithListeners(listeners...))
	_, err := exec.Start(ctx, nil)
	require.NoError(t, err)
	resp, err := exec.SignalEvent(ctx, domain.Outcome("buy"))
	require.NoError(t, err)
	require.Equal(t, "sorry", resp.StateID)
	_, err = exec.SignalEvent(ctx, domain.Outcome("leave"))
	require.NoError(t, err)
	require.True(t, exec.Ended())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	drive(t, m)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsStarted.WithLabelValues("checkout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsEnded.WithLabelValues("checkout", "gone")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stateEntries.WithLabelValues("checkout", "cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stateEntries.WithLabelValues("checkout", "reserve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stateEntries.WithLabelValues("checkout", "sorry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("checkout", "buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exceptions.WithLabelValues("checkout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handled.WithLabelValues("checkout", "sorry")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "webflow_request_duration_seconds" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(3), samples)
	assert.Empty(t, m.started)
}

func TestMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	drive(t, NewLogger(logging.NewWithWriter(&buf, slog.LevelDebug)))

	out := buf.String()
	assert.Contains(t, out, "session started")
	assert.Contains(t, out, "execution=k-1")
	assert.Contains(t, out, "state entered")
	assert.Contains(t, out, "from=cart")
	assert.Contains(t, out, "exception thrown")
	assert.Contains(t, out, "err=")
	assert.Contains(t, out, "inventory offline")
	assert.Contains(t, out, "target=sorry")
	assert.Contains(t, out, "session ended")
}

func TestLogger_Nil(t *testing.T) {
	assert.NotPanics(t, func() { drive(t, NewLogger(nil)) })
}
