package mac

import "errors"

// Sentinel RX/TX error kinds, distinguishable with errors.Is, so a host
// program's own logging or metrics can tell a stuff error from a CRC
// error without re-deriving it from the FSM state name. Grounded on
// CAN_XR_MAC_Common.c's distinct default-case comments at each form-check
// site ("stuff error", "CRC error", "form error"), which the original C
// only ever surfaces as an undifferentiated jump to ERROR.
var (
	ErrStuffBit         = errors.New("mac: stuff bit violation")
	ErrCRCMismatch      = errors.New("mac: CRC mismatch")
	ErrFormAtCDEL       = errors.New("mac: form error at CRC delimiter")
	ErrFormAtACK        = errors.New("mac: form error at ACK slot")
	ErrFormAtADEL       = errors.New("mac: form error at ACK delimiter")
	ErrFormAtEOF        = errors.New("mac: form error at end of frame")
	ErrUnsupportedFrame = errors.New("mac: unsupported frame format (IDE or FDF set)")
	ErrTxAborted        = errors.New("mac: transmit FSM in an unexpected state, request aborted")

	// ErrHandshakeViolation is delivered when DataRequest is called while a
	// previous request is still pending, an LLC protocol violation rather
	// than a bus-level error.
	ErrHandshakeViolation = errors.New("mac: data request already pending")

	// ErrInvalidState is the defensive catch-all for a dispatch reaching the
	// RX FSM's default case, matching CAN_XR_MAC_Common.c's own default
	// case in pcs_data_ind's switch, which equally catches the ERROR state
	// itself alongside any state it was never meant to fall through to.
	ErrInvalidState = errors.New("mac: receive FSM in an unexpected state")
)

// ErrorIndication is the optional collaborator notified of every RX/TX
// error and LLC handshake violation, alongside the unconditional FSM
// reset/NO_SUCCESS confirmation those events already trigger. A host
// program with no interest in error detail can leave this unset.
type ErrorIndication interface {
	ErrorIndication(ts uint64, err error)
}

// SetErrorIndication installs the error-detail collaborator.
func (m *MAC) SetErrorIndication(errInd ErrorIndication) {
	m.errInd = errInd
}

func (m *MAC) deliverError(ts uint64, err error) {
	if m.errInd != nil {
		m.errInd.ErrorIndication(ts, err)
	}
}
