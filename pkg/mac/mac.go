package mac

// PCSPort is the narrow contract MAC needs from the PCS layer: request a
// bit level for the next boundary, and toggle resynchronization policy.
// Satisfied by *pcs.PCS without an import cycle.
type PCSPort interface {
	DataReq(level int)
	SetHardSyncAllowed(allowed bool)
}

// Indication is the LLC-side contract for arriving frames (spec.md §6.2).
type Indication interface {
	DataIndication(ts uint64, frame Frame)
}

// Confirmation is the LLC-side contract for the outcome of a transmit
// request (spec.md §6.2).
type Confirmation interface {
	DataConfirmation(ts uint64, id uint32, status Status)
}

// ExtTxDataIndicator is the extension hook reserved for responder-role
// payload transmission (spec.md §4.3, §9); TxExtData/TxExtTail are
// unreachable states unless one is installed.
type ExtTxDataIndicator func(ts uint64)

// MAC is the CBFF medium access control engine: one receive FSM, one
// transmit FSM, a shared stuff-bit tracker and CRC accumulator, driven one
// sample point at a time by the PCS layer (spec.md §4.2, §4.3).
type MAC struct {
	pcs   PCSPort
	state state

	ind          Indication
	conf         Confirmation
	errInd       ErrorIndication
	extTxDataInd ExtTxDataIndicator
}

// New constructs a MAC bound to a PCS port, starting in bus integration
// state per [1] 10.9.4.
func New(pcsPort PCSPort) *MAC {
	m := &MAC{pcs: pcsPort}
	m.state.rxFSM = RxBusIntegration
	m.state.txFSM = TxIdle
	return m
}

// SetIndication installs the LLC data_ind collaborator.
func (m *MAC) SetIndication(ind Indication) {
	m.ind = ind
}

// SetConfirmation installs the LLC data_conf collaborator.
func (m *MAC) SetConfirmation(conf Confirmation) {
	m.conf = conf
}

// SetExtTxDataIndication installs the responder payload extension hook.
func (m *MAC) SetExtTxDataIndication(f ExtTxDataIndicator) {
	m.extTxDataInd = f
}

// RxState and TxState expose the current automaton states for tracing and
// tests.
func (m *MAC) RxState() RxState { return m.state.rxFSM }
func (m *MAC) TxState() TxState { return m.state.txFSM }

// DataIndication is the pcs.SampleObserver implementation: PCS calls this
// once per sample point, carrying the bit sampled on the bus.
func (m *MAC) DataIndication(ts uint64, bit int) {
	m.rxDispatch(ts, bit)
	m.txDispatch(ts)
}

// DataRequest is the LLC->MAC data request primitive (spec.md §6.2),
// grounded on CAN_XR_MAC_Common.c's mac_data_req. A request arriving while
// one is already pending is an LLC handshake error; an unsupported format
// is rejected outright. Both are confirmed NO_SUCCESS immediately, through
// the same data_conf collaborator an accepted request is later confirmed
// through once its transmission completes or fails.
func (m *MAC) DataRequest(ts uint64, id uint32, format Format, dlc int, data []byte) {
	s := &m.state

	if s.dataReqPending {
		m.deliverError(ts, ErrHandshakeViolation)
		m.deliverDataConf(ts, id, NO_SUCCESS)
		return
	}
	if format != CBFF {
		m.deliverError(ts, ErrUnsupportedFrame)
		m.deliverDataConf(ts, id, NO_SUCCESS)
		return
	}

	s.txIdentifier = id
	s.txFormat = format
	s.txDLC = dlc
	s.txData = [MaxDataBytes]byte{}
	copy(s.txData[:], data)
	s.dataReqPending = true
}

func (m *MAC) deliverDataInd(ts uint64, frame Frame) {
	if m.ind != nil {
		m.ind.DataIndication(ts, frame)
	}
}

func (m *MAC) deliverDataConf(ts uint64, id uint32, status Status) {
	if m.conf != nil {
		m.conf.DataConfirmation(ts, id, status)
	}
}
