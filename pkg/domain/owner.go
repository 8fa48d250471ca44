package domain

// Owner is the concurrent unit driving a stream through the pipeline.
// A tracer is linked to its owner and lives exactly as long as it does.
type Owner interface {
	// ID identifies the owner in instrumentation and trace registries.
	ID() string
	// Done is closed when the owner exits.
	Done() <-chan struct{}
	// Err returns the exit reason. It is only meaningful after Done is closed.
	Err() error
}
