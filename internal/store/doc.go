// Package store provides persistence for positions, trades, and sessions.
//
// Positions and trades live in PostgreSQL behind a pgx connection pool.
// Sessions live in Redis with a sliding TTL: every successful validation
// renews the session's expiry.
package store
