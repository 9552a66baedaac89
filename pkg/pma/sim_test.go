package pma_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/minimap-xl/sdcc/pkg/pma"
)

func TestSimBusWiredANDDominantWins(t *testing.T) {
	a := pma.NewSimNode()
	b := pma.NewSimNode()

	var aSeen, bSeen int
	a.SetNodeClockIndication(func(level int) { aSeen = level })
	b.SetNodeClockIndication(func(level int) { bSeen = level })

	bus := pma.NewSimBus(a, b)

	a.DataReq(0) // dominant
	b.DataReq(1) // recessive

	bus.Step()

	assert.Equal(t, 0, aSeen, "dominant must win the wired AND")
	assert.Equal(t, 0, bSeen)
}

func TestSimBusAllRecessiveIsIdle(t *testing.T) {
	a := pma.NewSimNode()
	b := pma.NewSimNode()

	var aSeen int
	a.SetNodeClockIndication(func(level int) { aSeen = level })

	bus := pma.NewSimBus(a, b)
	bus.Step()

	assert.Equal(t, 1, aSeen)
}

func TestSimNodeStartsRecessive(t *testing.T) {
	n := pma.NewSimNode()
	assert.Equal(t, 1, n.Driven())
}

func TestLoopbackEchoesOwnDrivenLevel(t *testing.T) {
	n := pma.NewSimNode()

	var seen int
	n.SetNodeClockIndication(func(level int) { seen = level })

	bus := pma.Loopback(n)

	n.DataReq(0) // dominant
	bus.Step()
	assert.Equal(t, 0, seen)

	n.DataReq(1) // recessive
	bus.Step()
	assert.Equal(t, 1, seen)
}
