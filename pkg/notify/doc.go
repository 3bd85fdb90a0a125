/*
Package notify fans one Redis-backed task_updates subscription out to
many local subscribers. Grounded on the teacher's pkg/events in-memory
Broker (topic-agnostic, buffered-channel-per-subscriber, non-blocking
publish), repurposed from cluster service/node/secret/volume events to
task lifecycle updates, and driven by a Relay that owns the single
upstream pkg/bus subscription rather than letting every local consumer
open its own.

A CLI's watch command or an admin-facing SSE handler calls
Broker.Subscribe and reads from the returned channel; a single Relay,
started once per process, is the only thing that ever calls
bus.Bus.SubscribeTaskUpdates.
*/
package notify
