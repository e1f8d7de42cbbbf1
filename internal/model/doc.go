// Package model defines shared data types used across the trading core.
//
// Conventions:
//   - Symbols: normalized uppercase pair identifiers (e.g., "BTCUSDT")
//   - Money: decimal.Decimal with NUMERIC(20,8) semantics; display rounding
//     is 4 decimal places for values and 2 for percentages
//   - IDs: uuid.UUID for positions and trades, opaque strings for users
//     and sessions
package model
