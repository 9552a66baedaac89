// Package pcs implements the Physical Coding Sub-layer of a software-defined
// CAN controller: quantum counting within a nominal bit, hard/soft
// resynchronization, the sampling-point upcall into MAC, and bit-boundary
// driving of the transmit line.
//
// Grounded on CAN_XR_PCS.c (ISO 11898-1:2015 Section 11.1/11.3), reshaped
// from the original's back-pointer wiring into the upcall-sink / narrow
// request API design note (spec.md (see DESIGN.md) §9).
package pcs

import "fmt"

// Transceiver is the PMA-side contract (spec.md §6.1): PCS drives the bus
// through it once per quantum step, only near bit boundaries.
type Transceiver interface {
	DataReq(level int)
}

// SampleObserver is the MAC-side contract: PCS raises it at the sample
// point of every nominal bit.
type SampleObserver interface {
	DataIndication(ts uint64, bit int)
}

// Parameters are the immutable bit-time parameters of spec.md §3.
type Parameters struct {
	PrescalerM int // [1,32]
	SyncSeg    int // fixed at 1
	PropSeg    int // [1,8]
	PhaseSeg1  int // [1,8]
	PhaseSeg2  int // [2,8]
	SJW        int // [1,4]
}

// Validate checks the ranges spec.md §3 requires. Unlike the original C,
// which trusted compile-time #defines, a runtime-configured Go controller
// must validate whatever pkg/config handed it before a PCS is constructed.
func (p Parameters) Validate() error {
	switch {
	case p.PrescalerM < 1 || p.PrescalerM > 32:
		return fmt.Errorf("pcs: prescaler_m %d out of range [1,32]", p.PrescalerM)
	case p.SyncSeg != 1:
		return fmt.Errorf("pcs: sync_seg must be 1, got %d", p.SyncSeg)
	case p.PropSeg < 1 || p.PropSeg > 8:
		return fmt.Errorf("pcs: prop_seg %d out of range [1,8]", p.PropSeg)
	case p.PhaseSeg1 < 1 || p.PhaseSeg1 > 8:
		return fmt.Errorf("pcs: phase_seg1 %d out of range [1,8]", p.PhaseSeg1)
	case p.PhaseSeg2 < 2 || p.PhaseSeg2 > 8:
		return fmt.Errorf("pcs: phase_seg2 %d out of range [2,8]", p.PhaseSeg2)
	case p.SJW < 1 || p.SJW > 4:
		return fmt.Errorf("pcs: sjw %d out of range [1,4]", p.SJW)
	}
	return nil
}

// QuantaPerBit is the derived nominal bit length in quanta.
func (p Parameters) QuantaPerBit() int {
	return p.SyncSeg + p.PropSeg + p.PhaseSeg1 + p.PhaseSeg2
}

// SamplePointIndex is the quantum index sampled each bit: the last tick of
// phase_seg1.
func (p Parameters) SamplePointIndex() int {
	return p.SyncSeg + p.PropSeg + p.PhaseSeg1 - 1
}

// State is the mutable PCS state of spec.md §3.
type State struct {
	NodeClockTS     uint64
	PrescalerCnt    int
	QuantumCnt      int
	PrevBusLevel    int
	PrevSample      int
	SyncInhibit     bool
	HardSyncAllowed bool
	OutputBuf       int
	SendingLevel    int
}

// PCS is the bit-time engine. It is created once and never destroyed during
// operation, per spec.md §3 lifecycle.
type PCS struct {
	Parameters Parameters

	state State

	tx       Transceiver
	observer SampleObserver
}

// New constructs a PCS with the recessive-idle initial state the original
// init_state() uses: bus assumed recessive, hard sync allowed, nothing
// queued for transmission.
func New(params Parameters, tx Transceiver) (*PCS, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("pcs: transceiver must not be nil")
	}
	return &PCS{
		Parameters: params,
		tx:         tx,
		state: State{
			PrevBusLevel:    1,
			PrevSample:      1,
			HardSyncAllowed: true,
			OutputBuf:       1,
			SendingLevel:    1,
		},
	}, nil
}

// SetObserver installs the MAC-side sample-point upcall sink. Mutable only
// before the engine starts ticking, per spec.md §9.
func (p *PCS) SetObserver(obs SampleObserver) {
	p.observer = obs
}

// State returns a copy of the current PCS state, for tests and tracing.
func (p *PCS) State() State {
	return p.state
}

// SetHardSyncAllowed toggles the resynchronization policy MAC selects
// (spec.md §4.1, §4.2 IDLE state: hard sync disabled on SOF; re-enabled at
// end of EOF).
func (p *PCS) SetHardSyncAllowed(allowed bool) {
	p.state.HardSyncAllowed = allowed
}

// DataReq latches the level MAC wants driven next; actual transmission is
// deferred to the next bit boundary (spec.md §4.1).
func (p *PCS) DataReq(level int) {
	p.state.OutputBuf = level
}

// Tick is the single entry point the PMA calls once per node-clock
// indication, carrying the currently sampled bus level.
func (p *PCS) Tick(busLevel int) {
	p.state.NodeClockTS++

	p.state.PrescalerCnt = (p.state.PrescalerCnt + 1) % p.Parameters.PrescalerM
	if p.state.PrescalerCnt == 0 {
		p.quantumStep(busLevel)
	}
}

// quantumStep implements spec.md §4.1 steps 1-9, invoked once per quantum.
func (p *PCS) quantumStep(busLevel int) {
	s := &p.state
	ts := s.NodeClockTS

	edge := s.PrevBusLevel ^ busLevel

	if edge != 0 && !s.SyncInhibit && s.PrevSample == 1 {
		spIdx := p.Parameters.SamplePointIndex()

		var phaseError int
		switch {
		case s.QuantumCnt == 0:
			phaseError = 0
		case s.QuantumCnt <= spIdx:
			phaseError = s.QuantumCnt
		default:
			phaseError = s.QuantumCnt - p.Parameters.QuantaPerBit()
		}

		if phaseError < 0 || (phaseError > 0 && s.SendingLevel == 1) {
			if s.HardSyncAllowed {
				s.QuantumCnt = 0
			} else {
				adj := clamp(phaseError, -p.Parameters.SJW, p.Parameters.SJW)
				s.QuantumCnt -= adj
			}
		}
	}

	if edge != 0 {
		s.SyncInhibit = true
	}

	if s.QuantumCnt == p.Parameters.SamplePointIndex() {
		if p.observer != nil {
			p.observer.DataIndication(ts, busLevel)
		}
		if busLevel == 1 {
			s.SyncInhibit = false
		}
		s.PrevSample = busLevel
	}

	if s.QuantumCnt >= p.Parameters.QuantaPerBit()-1 {
		p.tx.DataReq(s.OutputBuf)
		s.SendingLevel = s.OutputBuf
	}

	s.QuantumCnt = (s.QuantumCnt + 1) % p.Parameters.QuantaPerBit()
	s.PrevBusLevel = busLevel
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
