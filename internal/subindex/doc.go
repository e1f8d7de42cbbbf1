// Package subindex implements the bidirectional subscription index.
//
// The index is the single owner of three maps:
//   - user -> set of session IDs
//   - user -> set of subscribed symbols
//   - symbol -> set of subscribed users
//
// All mutations run under one mutex and return transition deltas (symbols
// newly tracked, symbols whose last subscriber left) so callers can drive
// upstream subscribe/unsubscribe side-effects without re-scanning. Readers
// receive snapshot copies, never the live sets.
package subindex
