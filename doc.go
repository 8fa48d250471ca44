/*
Package reqtrace is a selective, per-request runtime event tracer.

Given a declarative match specification it decides, once per stream,
whether a request should be traced. When it should, instrumentation is
enabled on the process owning the request and every captured event is
folded, in arrival order, through an operator supplied callback until the
owner exits or a controller stops the tracer.

# Concepts

  - Match spec: an ordered AND of clauses over method, host, path, headers,
    peer address and named predicates (package match).
  - Guard: runs the match and guarantees at most one tracer per owner
    (package tracer).
  - Worker: one goroutine per traced stream with an unbounded mailbox and a
    suspend/resume/terminate control protocol (package tracer).
  - Stage: the hook point in a request pipeline (package pipeline).

# Usage

	t := reqtrace.New(
		reqtrace.WithLogger(logger),
		reqtrace.WithProfile(reqtrace.Profile{
			Name:     "api",
			Spec:     match.Spec{match.PathPrefix{Value: "/api/"}},
			Callback: callbacks.NewLogger(logger, slog.LevelInfo),
		}),
	)
	defer t.Shutdown(context.Background())

	http.ListenAndServe(":8080", t.Wrap(appHandler))

Tracers of live requests can be inspected and controlled through
t.AdminHandler().
*/
package reqtrace
