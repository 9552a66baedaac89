package mac

import (
	"fmt"
	"io"
)

// Dump writes the labeled state dump to w, the direct CAN_XR_MAC_Dump
// equivalent; String (below) is the same rendering via fmt.Stringer for
// use in tests and %v-style trace output.
func (m *MAC) Dump(w io.Writer, label string) {
	fmt.Fprintf(w, "%s: %s\n", label, m.String())
}

// String renders the full internal MAC state, field by field, in the same
// order as CAN_XR_MAC_Dump.c's CAN_XR_MAC_Dump. Useful in trace output and
// tests when a frame gets stuck mid-assembly.
func (m *MAC) String() string {
	s := &m.state

	rxLen := DataLen(s.rxDLC)
	txLen := DataLen(s.txDLC)

	return fmt.Sprintf(
		"mac.MAC{\n"+
			"  rxFSM=%s,\n"+
			"  busIntegrationCounter=%d,\n"+
			"  ncBits=%d, ncPol=%d,\n"+
			"  crc=0x%04x,\n"+
			"  fieldBits=%d,\n"+
			"  rxIdentifier=%d, rxRTR=%t, rxIDE=%t, rxFDF=%t, rxDLC=%d,\n"+
			"  rxByte=0x%02x, rxByteIndex=%d,\n"+
			"  rxData=% 02x,\n"+
			"  txFSM=%s,\n"+
			"  dataReqPending=%t,\n"+
			"  txIdentifier=%d, txFormat=%s, txDLC=%d,\n"+
			"  txData=% 02x,\n"+
			"  txByteIndex=%d, txBitCount=%d, txShiftReg=0x%08x,\n"+
			"}",
		s.rxFSM,
		s.busIntegrationCounter,
		s.ncBits, s.ncPol,
		s.crc,
		s.fieldBits,
		s.rxIdentifier, s.rxRTR, s.rxIDE, s.rxFDF, s.rxDLC,
		s.rxByte, s.rxByteIndex,
		s.rxData[:rxLen],
		s.txFSM,
		s.dataReqPending,
		s.txIdentifier, s.txFormat, s.txDLC,
		s.txData[:txLen],
		s.txByteIndex, s.txBitCount, s.txShiftReg,
	)
}
