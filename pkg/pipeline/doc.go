// Package pipeline defines the per-stream stage contract a request pipeline
// drives, and TracerStage, a passthrough stage that decides at stream start
// whether to attach a tracer.
//
// A stage returns Commands for the driver to execute. TracerStage adds a
// Spawn command when a tracer was started; the driver is expected to hand
// the child to a tracer.Supervisor.
package pipeline
