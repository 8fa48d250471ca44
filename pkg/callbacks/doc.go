// Package callbacks provides ready-made tracer callbacks: a function adapter,
// a structured logger, a JSON-lines writer and an in-memory recorder.
package callbacks
