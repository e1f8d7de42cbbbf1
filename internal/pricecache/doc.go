// Package pricecache holds the latest-known price per symbol.
//
// The cache is written only by Broadcaster flushes (bulk, atomic with
// respect to readers) and read by the P&L engine and the gateway. Entries
// expire lazily: a read older than the TTL is treated as absent.
package pricecache
