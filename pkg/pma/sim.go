package pma

import "sync"

// SimNode is one node's PMA on a simulated bus: it remembers the level
// its own transceiver last drove and the level last sampled off the bus,
// combining the two with a wired AND exactly as CAN_XR_PMA_Sim_NodeClock_Ind
// does. 0 is dominant and always wins the AND; 1 is recessive.
type SimNode struct {
	mu         sync.Mutex
	rxBusLevel int
	txBusLevel int
	ind        NodeClockIndicator
}

// NewSimNode returns a node whose bus sides start recessive, matching
// CAN_XR_PMA_Sim_Init.
func NewSimNode() *SimNode {
	return &SimNode{rxBusLevel: 1, txBusLevel: 1}
}

// SetNodeClockIndication installs the upper-layer (pcs.PCS.Tick) upcall.
func (n *SimNode) SetNodeClockIndication(ind NodeClockIndicator) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ind = ind
}

// DataReq implements Transceiver: latch the level this node wants to
// drive next.
func (n *SimNode) DataReq(level int) {
	n.mu.Lock()
	n.txBusLevel = level
	n.mu.Unlock()
}

// Driven returns the level this node is currently driving, for the bus to
// combine across nodes.
func (n *SimNode) Driven() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.txBusLevel
}

// NodeClockIndication feeds one sampled bus level into this node, wired-AND
// combined with whatever this node itself is driving, and raises the
// upper-layer node clock indication with the result.
func (n *SimNode) NodeClockIndication(busLevel int) {
	n.mu.Lock()
	n.rxBusLevel = busLevel
	combined := n.rxBusLevel & n.txBusLevel
	ind := n.ind
	n.mu.Unlock()

	if ind != nil {
		ind(combined)
	}
}

// SimBus is a multi-node wired-AND CAN bus simulator: each Step combines
// every attached node's driven level and delivers the result as that
// node's sampled bus level. Grounded on CAN_XR_PMA_Sim.c and exercised end
// to end by Host_Programs/01_basic_pma_tests.c's style of bus-level
// simulation, generalized here from the original's two-node case to N
// nodes.
type SimBus struct {
	nodes []*SimNode
}

// NewSimBus constructs a bus with the given nodes already attached.
func NewSimBus(nodes ...*SimNode) *SimBus {
	return &SimBus{nodes: nodes}
}

// Attach adds a node to the bus.
func (b *SimBus) Attach(n *SimNode) {
	b.nodes = append(b.nodes, n)
}

// Step combines every node's currently driven level with a wired AND and
// delivers the result to every node as its sampled bus level for this
// node-clock tick.
func (b *SimBus) Step() {
	level := 1
	for _, n := range b.nodes {
		level &= n.Driven()
	}
	for _, n := range b.nodes {
		n.NodeClockIndication(level)
	}
}
