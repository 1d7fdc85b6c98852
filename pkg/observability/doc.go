/*
Package observability provides listeners that report what executions do.

Metrics exports Prometheus counters and a request latency histogram.
Logger writes the lifecycle of every session to a slog.Logger. Both are plain
domain.Listener values and can be combined with any other listener:

	reg := prometheus.NewRegistry()
	engine := webflow.New(locator, webflow.WithListeners(
		observability.NewMetrics(reg),
		observability.NewLogger(logger),
	))
*/
package observability
