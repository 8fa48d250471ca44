/*
Package domain contains the core data model of the request tracer.

It defines what a traced stream looks like from the tracer's point of view,
the events the instrumentation subsystem produces, and the callback contract
operators implement to consume them. This package is kept pure and free of
I/O, following the same hexagonal layout as the rest of the module.

# Key Entities

  - RequestContext: Immutable snapshot of a stream (method, host, path, headers, peer, owner).
  - Owner: The concurrent unit driving a stream; tracers link their lifetime to it.
  - TraceEvent: A timestamped record emitted by the instrumentation subsystem.
  - Callback: The three-operation fold (OnInit, OnEvent, OnTerminate) fed with events.
  - Options: Per-stream options carrying the match spec and the callback.
*/
package domain
