// Package upstream implements the exchange feed consumer.
//
// The consumer:
//   - Maintains one long-lived WebSocket connection to the exchange stream
//   - Keeps its subscribed-symbols set equal to the union the subscription
//     index requires
//   - Parses 24hrTicker events and forwards them to the price buffer
//   - Reconnects with exponential backoff and resubscribes the full set
//   - Surfaces a fatal condition after too many consecutive failures
package upstream
