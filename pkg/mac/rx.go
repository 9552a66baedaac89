package mac

// rxDispatch is the top-level receive dispatcher: it owns bit de-stuffing
// and feeds de-stuffed bits to the field assembler. Grounded on
// CAN_XR_MAC_Common.c's pcs_data_ind, split out of the combined RX/TX
// dispatch for readability.
//
// Bit stuffing is tracked here from SOF through the CRC delimiter; the
// trailer (ACK, ACK delimiter, EOF) leaves ncBits/ncPol untouched. The TX
// side reuses ncBits/ncPol to decide when it must insert a stuff bit of
// its own.
func (m *MAC) rxDispatch(ts uint64, bit int) {
	s := &m.state

	switch s.rxFSM {
	case RxBusIntegration:
		if bit == 0 {
			s.busIntegrationCounter = 0
			return
		}
		s.busIntegrationCounter++
		if s.busIntegrationCounter == 11 {
			s.busIntegrationCounter = 0
			s.rxFSM = RxIdle
		}
		return

	case RxIdle:
		if bit == 0 {
			// SOF: dominant. Seed the stuff-bit tracker and feed this
			// bit (the SOF itself) to the field assembler, which makes
			// the IDLE -> RX_ID transition.
			s.ncBits = 1
			s.ncPol = bit
			m.deStuffedInd(ts, bit)
		}
		return

	case RxID, RxRTR, RxIDE, RxFDF, RxDLC, RxData, RxCRC, RxCDEL:
		// Stuff-sensitive region: [1] 10.5. RX_CDEL is included because a
		// stuff bit may follow the last bit of CRC.
		if s.ncBits == 5 {
			if bit == s.ncPol {
				m.rxError(ts, ErrStuffBit)
				return
			}
			// Consumed as a stuff bit: reset the run, do not forward.
			s.ncBits = 1
			s.ncPol = bit
			return
		}
		if bit != s.ncPol {
			s.ncBits = 1
			s.ncPol = bit
		} else {
			s.ncBits++
		}
		m.deStuffedInd(ts, bit)

	case RxACK, RxADEL, RxEOF:
		// Bypass bit de-stuffing in the frame trailer, [1] 10.5 last
		// sentence.
		m.deStuffedInd(ts, bit)

	default:
		m.rxError(ts, ErrInvalidState)
	}
}

// rxError is the shared RX/TX recovery path: deliver the specific error
// kind to the optional ErrorIndication collaborator, abort a pending
// transmission with data_conf(NO_SUCCESS) (spec.md §7), request recessive
// at the next bit boundary, re-enable hard synchronization, and restart
// both automata. Grounded on CAN_XR_MAC_Common.c's default case of
// pcs_data_ind (which also catches the ERROR state itself), generalized
// from its single undifferentiated ERROR jump into distinct sentinel
// errors per call site.
func (m *MAC) rxError(ts uint64, err error) {
	s := &m.state

	m.deliverError(ts, err)
	if s.dataReqPending {
		s.dataReqPending = false
		m.deliverDataConf(ts, s.txIdentifier, NO_SUCCESS)
	}
	m.pcs.DataReq(1)
	m.pcs.SetHardSyncAllowed(true)
	s.rxFSM = RxBusIntegration
	s.txFSM = TxIdle
}

// deStuffedInd advances the field assembler by one de-stuffed bit. Grounded
// on CAN_XR_MAC_Common.c's de_stuffed_data_ind.
func (m *MAC) deStuffedInd(ts uint64, bit int) {
	s := &m.state

	switch s.rxFSM {
	case RxIdle:
		m.pcs.SetHardSyncAllowed(false)
		s.crc = crcUpdate(0, bit)
		s.fieldBits = 10
		s.rxIdentifier = 0
		s.rxFSM = RxID

	case RxID:
		s.rxIdentifier = s.rxIdentifier<<1 | uint32(bit&1)
		s.crc = crcUpdate(s.crc, bit)
		if s.fieldBits == 0 {
			s.fieldBits = 1
			s.rxFSM = RxRTR
		} else {
			s.fieldBits--
		}

	case RxRTR:
		s.rxRTR = bit != 0
		s.crc = crcUpdate(s.crc, bit)
		s.rxFSM = RxIDE

	case RxIDE:
		s.rxIDE = bit != 0
		s.crc = crcUpdate(s.crc, bit)
		if s.rxIDE {
			// Extended frame format is not implemented (spec.md Non-goals).
			m.rxError(ts, ErrUnsupportedFrame)
			return
		}
		s.rxFSM = RxFDF

	case RxFDF:
		s.rxFDF = bit != 0
		s.crc = crcUpdate(s.crc, bit)
		// spec.md §9: the original C checks rx_ide here, a transcription
		// bug. This implementation checks rx_fdf as the field name
		// requires: a set FDF bit means CAN FD, which is not implemented.
		if s.rxFDF {
			m.rxError(ts, ErrUnsupportedFrame)
			return
		}
		s.fieldBits = 3
		s.rxDLC = 0
		s.rxFSM = RxDLC

	case RxDLC:
		s.rxDLC = s.rxDLC<<1 | int(bit&1)
		s.crc = crcUpdate(s.crc, bit)
		if s.fieldBits == 0 {
			n := DataLen(s.rxDLC)
			if n > 0 {
				s.fieldBits = 8*n - 1
				s.rxData = [MaxDataBytes]byte{}
				s.rxByte = 0
				s.rxByteIndex = 0
				s.rxFSM = RxData

				// If an ext_tx_data_ind primitive has been registered to
				// extend the base MAC, switch the transmit automaton to
				// the appropriate state. To help the primitive in case it
				// has to start transmitting immediately, also set
				// txByteIndex and prepare txData[0] for transmission in
				// txShiftReg.
				if m.extTxDataInd != nil {
					s.txByteIndex = 0
					s.txShiftReg = shiftPrepare(uint32(s.txData[0]), 8)
					s.txBitCount = s.fieldBits
					s.txFSM = TxExtData
				}
			} else {
				s.fieldBits = 14
				s.rxFSM = RxCRC
			}
		} else {
			s.fieldBits--
		}

	case RxData:
		s.rxByte = s.rxByte<<1 | byte(bit&1)
		s.crc = crcUpdate(s.crc, bit)
		if s.fieldBits%8 == 0 {
			s.rxData[s.rxByteIndex] = s.rxByte
			s.rxByteIndex++
			s.rxByte = 0
		}
		if s.fieldBits == 0 {
			s.fieldBits = 14
			s.rxFSM = RxCRC
		} else {
			s.fieldBits--
		}

	case RxCRC:
		s.crc = crcUpdate(s.crc, bit)
		if s.fieldBits == 0 {
			if s.crc != 0 {
				m.rxError(ts, ErrCRCMismatch)
				return
			}
			s.rxFSM = RxCDEL
		} else {
			s.fieldBits--
		}

	case RxCDEL:
		if bit != 1 {
			m.rxError(ts, ErrFormAtCDEL)
			return
		}
		// Drive the dominant ACK bit.
		m.pcs.DataReq(0)
		s.rxFSM = RxACK

	case RxACK:
		if bit != 0 {
			m.rxError(ts, ErrFormAtACK)
			return
		}
		m.pcs.DataReq(1)
		s.rxFSM = RxADEL

	case RxADEL:
		if bit != 1 {
			m.rxError(ts, ErrFormAtADEL)
			return
		}
		s.fieldBits = 6
		s.rxFSM = RxEOF

	case RxEOF:
		if bit != 1 && s.fieldBits != 0 {
			m.rxError(ts, ErrFormAtEOF)
			return
		}
		if s.fieldBits == 0 {
			frame := Frame{
				ID:     s.rxIdentifier,
				RTR:    s.rxRTR,
				Format: CBFF,
				DLC:    s.rxDLC,
				Data:   s.rxData,
			}
			m.deliverDataInd(ts, frame)
			m.pcs.SetHardSyncAllowed(true)
			s.rxFSM = RxIdle
		} else {
			s.fieldBits--
		}
	}
}
