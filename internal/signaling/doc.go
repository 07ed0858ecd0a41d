// Package signaling implements the WebSocket rendezvous relay: password-gated
// rooms, a flat peer-id directory with deferred matching, per-connection
// admission and rate limits, and a heartbeat sweep.
//
// Payloads are routed, never interpreted. All shared state lives in a Hub;
// the WebSocket layer only frames messages and enforces transport limits.
package signaling
