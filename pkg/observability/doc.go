/*
Package observability exposes Prometheus metrics for the request tracer.

Metrics plugs into the tracer through tracer.Hooks, so the core packages stay
free of any metrics dependency:

	m := observability.NewMetrics(prometheus.DefaultRegisterer)
	guard := tracer.NewGuard(hub, tracer.WithHooks(m.Hooks()))
*/
package observability
