// Package broadcast fans flushed price batches out to subscribers.
//
// Each flush updates the price cache first, then sends one price_update
// frame per symbol to every subscribed user's sessions, then schedules a
// debounced P&L recomputation for the union of affected users. Fan-out is
// concurrent across symbols and never blocks on a slow session.
package broadcast
