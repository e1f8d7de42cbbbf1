// Package pricebuffer implements the coalescing tick buffer.
//
// Ticks are ingested at feed rate into a per-symbol last-write-wins map.
// A flush loop drains the map on a fixed interval and hands the batch to a
// FlushHandler, so downstream fan-out runs at flush rate no matter how
// fast the feed ticks.
package pricebuffer
