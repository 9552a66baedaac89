package llc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimap-xl/sdcc/pkg/llc"
	"github.com/minimap-xl/sdcc/pkg/mac"
)

// stubPCS is the minimal mac.PCSPort double needed to construct a MAC
// without a real PCS engine; these tests only exercise the LLC boundary.
type stubPCS struct{}

func (stubPCS) DataReq(int)              {}
func (stubPCS) SetHardSyncAllowed(bool) {}

func TestChannelLLCRequestRejectsOutOfRangeID(t *testing.T) {
	m := mac.New(stubPCS{})
	l := llc.New(4)
	l.Bind(m)

	err := l.Request(0x800, 0, nil)
	assert.Error(t, err)
}

func TestChannelLLCRequestBeforeBindFails(t *testing.T) {
	l := llc.New(4)
	err := l.Request(1, 0, nil)
	assert.Error(t, err)
}

func TestChannelLLCDeliversFrameIndication(t *testing.T) {
	m := mac.New(stubPCS{})
	l := llc.New(4)
	l.Bind(m)

	frame := mac.Frame{ID: 0x42, DLC: 2, Data: [mac.MaxDataBytes]byte{0xAB, 0xCD}}
	l.DataIndication(0, frame)

	select {
	case got := <-l.Received():
		assert.Equal(t, frame, got)
	default:
		t.Fatal("expected a buffered frame on Received()")
	}
}

func TestChannelLLCDeliversConfirmation(t *testing.T) {
	m := mac.New(stubPCS{})
	l := llc.New(4)
	l.Bind(m)

	l.DataConfirmation(0, 0x99, mac.SUCCESS)

	select {
	case got := <-l.Confirmed():
		require.Equal(t, uint32(0x99), got.ID)
		assert.Equal(t, mac.SUCCESS, got.Status)
	default:
		t.Fatal("expected a buffered confirmation on Confirmed()")
	}
}

func TestChannelLLCRequestForwardsToMAC(t *testing.T) {
	m := mac.New(stubPCS{})
	l := llc.New(4)
	l.Bind(m)

	require.NoError(t, l.Request(0x10, 2, []byte{1, 2}))

	// A second request while one is pending is an LLC handshake error and
	// must be confirmed NO_SUCCESS immediately.
	require.NoError(t, l.Request(0x11, 0, nil))

	select {
	case got := <-l.Confirmed():
		assert.Equal(t, mac.NO_SUCCESS, got.Status)
	default:
		t.Fatal("expected an immediate NO_SUCCESS confirmation")
	}
}
