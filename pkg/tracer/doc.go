/*
Package tracer activates and runs per-stream tracers.

A Guard decides once per stream whether to trace it: the stream must carry
both a match spec and a callback, the spec must match, and the owner must not
already be instrumented. On success the Guard claims the owner, spawns a
Worker linked to it and enables capture directed at the Worker.

A Worker is a single goroutine folding events through its Callback:

	INIT -> RUNNING -> TERMINATING -> terminated

Events, owner exit, control requests and stray messages share one unbounded
FIFO mailbox and are processed strictly in arrival order. A controller can
Suspend, Inspect, Resume, MigrateState or Terminate the Worker through
synchronous request/reply calls. While suspended, only control requests are
taken from the mailbox; events keep queuing and are folded in their original
order after Resume. An owner exit queued during suspension ends the exchange.

The Worker exits with its owner's exit reason, or with the reason a
controller supplied. A failing callback ends the Worker with a *CallbackError;
the owner is never affected.
*/
package tracer
