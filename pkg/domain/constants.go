package domain

// Option keys recognized by the tracer. Any other key is passed through.
const (
	// KeyMatchSpec holds the ordered clause list deciding activation.
	KeyMatchSpec = "match_spec"
	// KeyCallback holds the Callback receiving trace events.
	KeyCallback = "callback"
)
