// Package server provides the HTTP surface for votewatch.
//
// It serves the embedded dashboard at "/", streams snapshot events to live
// observers over Server-Sent Events ("/events") and WebSocket ("/ws"), and
// exposes "/reset-memory", "/api/history", "/healthz", and "/metrics".
//
// Every stream starts with one "init" event carrying the whole history,
// followed by an "update" event per recorded snapshot:
//
//	data: {"type":"init","payload":[{"timestamp":"...","votes":{...}}]}
//
//	data: {"type":"update","payload":{"timestamp":"...","votes":{...}}}
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
