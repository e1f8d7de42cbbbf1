// Package core wires the pipeline together and owns its lifecycle.
//
// Composition: upstream consumer → price buffer → broadcaster →
// {price cache, gateway hub, P&L engine}. The core starts the sinks
// before the source and stops them in the reverse order, and surfaces a
// degraded health state when the upstream consumer has given up.
package core
