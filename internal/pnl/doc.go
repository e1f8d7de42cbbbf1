// Package pnl computes portfolio profit-and-loss snapshots.
//
// Recomputations are debounced per user so a burst of price flushes
// produces one computation, then executed by a bounded worker pool. The
// pool never blocks the broadcaster: when the work queue is full the job
// is dropped and the next flush reschedules it. Completed snapshots are
// pushed to the user's sessions as pnl_update frames and cached briefly
// for get_portfolio requests.
package pnl
