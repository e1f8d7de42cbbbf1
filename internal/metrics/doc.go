// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Upstream connection state, tick throughput, and reconnects
//   - Price buffer flush and coalescing counts
//   - P&L worker queue depth and computation rates
//   - Client session counts and per-session frame drops
package metrics
