// Package llc implements the thin Link Layer Control collaborator that
// sits above pkg/mac (spec.md §6.2), ISO 11898-1:2015 Section 8. The
// original CAN_XR_LLC.h describes this layer as "currently incomplete:
// it only contains data type definitions shared between LLC and MAC" -
// this package supplies the reference implementation the header promises
// but never delivers, in the teacher's channel-oriented style (kissserial.go,
// kissnet.go hand frames to application code over channels rather than
// blocking calls).
package llc

import (
	"fmt"

	"github.com/minimap-xl/sdcc/pkg/mac"
)

// Requester is the application-facing half of the LLC contract: submit a
// frame for transmission. ChannelLLC implements this by forwarding straight
// to the MAC's DataRequest primitive.
type Requester interface {
	Request(id uint32, dlc int, data []byte) error
}

// ChannelLLC is a reference LLC: it receives mac.Indication/mac.Confirmation
// upcalls and republishes them on Go channels for an application goroutine
// to range over, and implements Requester by forwarding to the bound MAC.
type ChannelLLC struct {
	mac *mac.MAC

	received  chan mac.Frame
	confirmed chan Confirmation
}

// Confirmation is the outcome of one Request call, paired back to the
// identifier that was submitted.
type Confirmation struct {
	ID     uint32
	Status mac.Status
}

// New constructs an unbound ChannelLLC with the given channel buffer
// depth. Bind must then be called to attach it to a MAC, mirroring
// CAN_XR_MAC_Set_LLC's two-step wiring (set the back-pointer, then
// register the two upcalls).
func New(bufSize int) *ChannelLLC {
	return &ChannelLLC{
		received:  make(chan mac.Frame, bufSize),
		confirmed: make(chan Confirmation, bufSize),
	}
}

// Bind attaches this LLC to a MAC instance, installing this as both the
// data_ind and data_conf collaborator.
func (l *ChannelLLC) Bind(m *mac.MAC) {
	l.mac = m
	m.SetIndication(l)
	m.SetConfirmation(l)
}

// Received is the channel application code ranges over to consume arrived
// frames.
func (l *ChannelLLC) Received() <-chan mac.Frame {
	return l.received
}

// Confirmed is the channel application code ranges over to learn the
// outcome of submitted requests.
func (l *ChannelLLC) Confirmed() <-chan Confirmation {
	return l.confirmed
}

// DataIndication implements mac.Indication.
func (l *ChannelLLC) DataIndication(ts uint64, frame mac.Frame) {
	select {
	case l.received <- frame:
	default:
		// Application is not keeping up; drop rather than block the
		// reactive engine tick. The engine has no notion of backpressure
		// at this layer (spec.md §9 Open Questions).
	}
}

// DataConfirmation implements mac.Confirmation.
func (l *ChannelLLC) DataConfirmation(ts uint64, id uint32, status mac.Status) {
	select {
	case l.confirmed <- Confirmation{ID: id, Status: status}:
	default:
	}
}

// Request implements Requester: submit id/dlc/data as a CBFF frame.
func (l *ChannelLLC) Request(id uint32, dlc int, data []byte) error {
	if l.mac == nil {
		return fmt.Errorf("llc: Bind must be called before Request")
	}
	if id > 0x7FF {
		return fmt.Errorf("llc: identifier %#x exceeds the 11-bit CBFF range", id)
	}
	l.mac.DataRequest(0, id, mac.CBFF, dlc, data)
	return nil
}
