// Package gateway serves the client-facing WebSocket endpoint.
//
// Each connection is validated against the session store before any data
// is sent, registered in the hub and the subscription index, then served
// by a read loop (inbound commands) and a write pump (outbound frames).
// Outbound queues are bounded; a session that cannot keep up is dropped
// so the fan-out pipeline never blocks.
package gateway
