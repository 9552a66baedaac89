// Package pma implements the Physical Medium Attachment contract
// (spec.md §6.1) and a host-side wired-AND bus simulator. Grounded on
// CAN_XR_PMA.h's primitive set and CAN_XR_PMA_Sim.c's combining rule;
// hardware backends (pkg/pma/gpio, pkg/pma/spi, pkg/pma/serial) implement
// the same Transceiver contract against real peripherals.
package pma

// NodeClockIndicator is the upcall a PMA raises once per node-clock edge,
// carrying the bus level sampled at that edge. pcs.PCS.Tick satisfies
// this signature.
type NodeClockIndicator func(busLevel int)

// Transceiver is the contract pkg/pcs depends on (mirrored as
// pcs.Transceiver): drive the bus to the requested level at the next bit
// boundary.
type Transceiver interface {
	DataReq(level int)
}

// Loopback wraps a single SimNode into a one-node bus: whatever the node
// drives is what it samples back, wired-AND combined with itself. It is
// the degenerate, single-node case CAN_XR_PMA_Common.c's shared helpers
// reduce to when only one node is under test, and saves callers that only
// need a self-consistent node-clock source from standing up a full SimBus.
func Loopback(n *SimNode) *SimBus {
	return NewSimBus(n)
}
