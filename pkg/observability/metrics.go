package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/webflow/pkg/domain"
)

const namespace = "webflow"

// Metrics is a listener that records execution activity as Prometheus metrics.
type Metrics struct {
	domain.NopListener

	sessionsStarted *prometheus.CounterVec
	sessionsEnded   *prometheus.CounterVec
	stateEntries    *prometheus.CounterVec
	events          *prometheus.CounterVec
	exceptions      *prometheus.CounterVec
	handled         *prometheus.CounterVec
	duration        prometheus.Histogram

	mu      sync.Mutex
	started map[domain.RequestContext]time.Time
	now     func() time.Time
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Flow sessions started, by flow.",
		}, []string{"flow_id"}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Flow sessions ended, by flow and end state.",
		}, []string{"flow_id", "outcome"}),
		stateEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_entries_total",
			Help:      "States entered, by flow and state.",
		}, []string{"flow_id", "state_id"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events signaled or produced by subflow outcomes.",
		}, []string{"flow_id", "event_id"}),
		exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exceptions_thrown_total",
			Help:      "Failures raised during request processing.",
		}, []string{"flow_id"}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exceptions_handled_total",
			Help:      "Failures rerouted by an exception handler, by target state.",
		}, []string{"flow_id", "target_state"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent processing Start and SignalEvent requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		started: make(map[domain.RequestContext]time.Time),
		now:     time.Now,
	}
	reg.MustRegister(
		m.sessionsStarted,
		m.sessionsEnded,
		m.stateEntries,
		m.events,
		m.exceptions,
		m.handled,
		m.duration,
	)
	return m
}

func (m *Metrics) RequestSubmitted(_ context.Context, rc domain.RequestContext) {
	m.mu.Lock()
	m.started[rc] = m.now()
	m.mu.Unlock()
}

func (m *Metrics) RequestProcessed(_ context.Context, rc domain.RequestContext) {
	m.mu.Lock()
	start, ok := m.started[rc]
	delete(m.started, rc)
	m.mu.Unlock()
	if ok {
		m.duration.Observe(m.now().Sub(start).Seconds())
	}
}

func (m *Metrics) SessionStarted(_ context.Context, _ domain.RequestContext, s domain.Session) {
	m.sessionsStarted.WithLabelValues(s.FlowID()).Inc()
}

func (m *Metrics) SessionEnded(_ context.Context, _ domain.RequestContext, s domain.Session, _ map[string]any) {
	m.sessionsEnded.WithLabelValues(s.FlowID(), s.StateID()).Inc()
}

func (m *Metrics) StateEntered(_ context.Context, rc domain.RequestContext, _, state *domain.State) error {
	m.stateEntries.WithLabelValues(activeFlowID(rc), state.ID).Inc()
	return nil
}

func (m *Metrics) EventSignaled(_ context.Context, rc domain.RequestContext, ev *domain.Event) {
	m.events.WithLabelValues(activeFlowID(rc), ev.ID).Inc()
}

func (m *Metrics) ExceptionThrown(_ context.Context, rc domain.RequestContext, _ error) {
	m.exceptions.WithLabelValues(activeFlowID(rc)).Inc()
}

func (m *Metrics) ExceptionHandled(_ context.Context, rc domain.RequestContext, _ error, h *domain.ExceptionHandler) {
	m.handled.WithLabelValues(activeFlowID(rc), h.TargetState).Inc()
}

func activeFlowID(rc domain.RequestContext) string {
	if s := rc.ActiveSession(); s != nil {
		return s.FlowID()
	}
	return ""
}
