/*
Package instrument is an in-process instrumentation subsystem.

A Hub spawns Processes, the owners that drive streams. Code running on
behalf of a stream reports calls, returns, sends and receives through its
Process; nothing is recorded until a tracer enables capture with Enable.
Once enabled, every event is stamped with a per-process sequence number and
timestamp and pushed to the attached receiver in emission order.

	hub := instrument.NewHub()
	proc := hub.Spawn(ctx)
	defer proc.Exit(nil)

	proc.Call("db.Query", query)
	rows, err := db.Query(query)
	proc.Return("db.Query", err)
*/
package instrument
