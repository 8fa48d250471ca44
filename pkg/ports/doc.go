/*
Package ports defines the driven ports (interfaces) of the request tracer.

These interfaces decouple the activation guard and tracer workers from the
concrete instrumentation subsystem and from where trace ownership is recorded,
so the same core runs in-process or coordinated across replicas.

# Key Interfaces

  - Instrumentation: Enables, queries and disables event capture on an owner.
  - Receiver: The destination instrumentation pushes events into.
  - TraceRegistry: Records which worker, if any, is attached to an owner.
  - DistributedLocker: Serializes control-plane sessions on a worker.
*/
package ports
