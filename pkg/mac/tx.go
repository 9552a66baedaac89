package mac

// txDispatch is entered once per sample point, after rxDispatch, mirroring
// CAN_XR_MAC_Common.c's tx FSM switch in pcs_data_ind. It decides whether a
// stuff bit must be inserted before handing control to txStep, using the
// ncBits/ncPol bookkeeping rxDispatch maintains: bit stuffing is computed
// once, by the receive side, and shared.
func (m *MAC) txDispatch(ts uint64) {
	s := &m.state

	switch s.txFSM {
	case TxIdle:
		// Honor a pending MAC_Data.Req only once the receiver is idle,
		// [1] 10.4.2.2. Intermission is not implemented (spec.md
		// Non-goals), so this implementation applies the stricter rule of
		// requiring the bus to have been sampled idle already.
		if s.dataReqPending && s.rxFSM == RxIdle {
			m.txStep(ts)
		}

	case TxID, TxRTR, TxIDE, TxFDF, TxDLC, TxData, TxCRCLatch, TxCRC, TxCDEL, TxExtData:
		// Common entry point for states in which the MAC transmits and bit
		// stuffing applies. TX_CDEL is included because a stuff bit may be
		// required after the last bit of CRC, before CDEL goes out.
		if s.ncBits == 5 {
			m.pcs.DataReq(1 - s.ncPol)
		} else {
			m.txStep(ts)
		}

	case TxExtTail:
		// Drive the bus back to recessive regardless of what the last
		// ext_tx_data_ind call transmitted.
		m.pcs.DataReq(1)
		s.txFSM = TxIdle

	case TxACK, TxADEL, TxEOF, TxEOFTail:
		// Bypass bit stuffing in the frame trailer, [1] 10.5 last sentence.
		m.txStep(ts)

	default:
		s.dataReqPending = false
		m.deliverError(ts, ErrTxAborted)
		m.deliverDataConf(ts, s.txIdentifier, NO_SUCCESS)
		m.pcs.DataReq(1)
		m.pcs.SetHardSyncAllowed(true)
		s.rxFSM = RxBusIntegration
		s.txFSM = TxIdle
	}
}

// txStep implements the transmit assembly FSM itself (tx_processing_ind).
func (m *MAC) txStep(ts uint64) {
	s := &m.state

	switch s.txFSM {
	case TxIdle:
		m.pcs.DataReq(0) // SOF
		s.txShiftReg = shiftPrepare(s.txIdentifier, 11)
		s.txBitCount = 10
		s.txFSM = TxID

	case TxID:
		bit := shiftOut(&s.txShiftReg)
		m.pcs.DataReq(bit)
		if s.txBitCount == 0 {
			s.txFSM = TxRTR
		} else {
			s.txBitCount--
		}

	case TxRTR:
		m.pcs.DataReq(0)
		s.txFSM = TxIDE

	case TxIDE:
		m.pcs.DataReq(0)
		s.txFSM = TxFDF

	case TxFDF:
		m.pcs.DataReq(0)
		s.txShiftReg = shiftPrepare(uint32(s.txDLC), 4)
		s.txBitCount = 3
		s.txFSM = TxDLC

	case TxDLC:
		bit := shiftOut(&s.txShiftReg)
		m.pcs.DataReq(bit)
		if s.txBitCount == 0 {
			if s.txDLC > 0 {
				s.txByteIndex = 0
				s.txShiftReg = shiftPrepare(uint32(s.txData[0]), 8)
				s.txBitCount = 8*DataLen(s.txDLC) - 1
				s.txFSM = TxData
			} else {
				s.txFSM = TxCRCLatch
			}
		} else {
			s.txBitCount--
		}

	case TxData:
		bit := shiftOut(&s.txShiftReg)
		m.pcs.DataReq(bit)
		if s.txBitCount == 0 {
			s.txFSM = TxCRCLatch
		} else {
			if s.txBitCount%8 == 0 {
				s.txByteIndex++
				s.txShiftReg = shiftPrepare(uint32(s.txData[s.txByteIndex]), 8)
			}
			s.txBitCount--
		}

	case TxCRCLatch:
		// The RX pipeline has computed the CRC over the same bits this
		// tick; latch it and shift the first bit out immediately, with no
		// extra bit-boundary delay.
		s.txShiftReg = shiftPrepare(uint32(s.crc), 15)
		s.txBitCount = 14
		bit := shiftOut(&s.txShiftReg)
		m.pcs.DataReq(bit)
		s.txBitCount--
		s.txFSM = TxCRC

	case TxCRC:
		bit := shiftOut(&s.txShiftReg)
		m.pcs.DataReq(bit)
		if s.txBitCount == 0 {
			s.txFSM = TxCDEL
		} else {
			s.txBitCount--
		}

	case TxCDEL:
		m.pcs.DataReq(1)
		s.txFSM = TxACK

	case TxACK:
		// The transmitter does not self-ACK; it stays recessive and lets
		// the receive side drive the dominant ACK bit (RX_CDEL).
		m.pcs.DataReq(1)
		s.txFSM = TxADEL

	case TxADEL:
		m.pcs.DataReq(1)
		s.txBitCount = 6
		s.txFSM = TxEOF

	case TxEOF:
		m.pcs.DataReq(1)
		if s.txBitCount == 0 {
			s.txFSM = TxEOFTail
		} else {
			s.txBitCount--
		}

	case TxEOFTail:
		s.dataReqPending = false
		s.txFSM = TxIdle
		m.deliverDataConf(ts, s.txIdentifier, SUCCESS)

	case TxExtData:
		m.pcs.DataReq(1)
		if m.extTxDataInd != nil {
			m.extTxDataInd(ts)
		}
		if s.txBitCount == 0 {
			s.txFSM = TxExtTail
		} else {
			s.txBitCount--
		}
	}
}

// shiftPrepare packs the low n bits of v into a shift register, MSb first,
// so repeated shiftOut calls yield v's bits from the top down.
func shiftPrepare(v uint32, n int) uint32 {
	return v << (32 - uint(n))
}

// shiftOut pops the top bit of a shiftPrepare-loaded register.
func shiftOut(reg *uint32) int {
	bit := int((*reg >> 31) & 1)
	*reg <<= 1
	return bit
}
