// Package broadcast provides the observer registry and real-time fan-out of
// vote snapshots.
//
// The [Hub] owns the set of connected observers. Registering an observer
// immediately queues one "init" event carrying the whole history, and every
// snapshot published afterwards reaches it as an "update" event. Events are
// JSON-encoded once and handed to each observer's queue; transports (SSE,
// WebSocket) drain the queue and write the bytes to their connection.
//
// Delivery is best-effort per observer. A full queue drops the event for
// that observer only, and write failures are the transport's concern. The
// Hub never unregisters an observer on its own: only the transport's close
// signal does, via [Hub.Unregister].
package broadcast
