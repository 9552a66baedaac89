// Package serial implements a PMA backend over a serial line to an
// external bridge (a microcontroller, FTDI bit-bang adapter, or the other
// end of a pty in tests) that actually drives the transceiver. One byte
// out sets the bus level for the next bit boundary, one byte in reports
// the level last sampled; grounded on serial_port.go's term.Term wrapper
// for the byte-oriented I/O and kiss_frame.go's one-byte command
// convention for the wire protocol shape (a one-byte command rather than
// the teacher's full KISS frame, since there is no payload to carry here).
package serial

import (
	"fmt"
	"time"

	"github.com/pkg/term"

	"github.com/minimap-xl/sdcc/pkg/pma"
)

// Wire levels, matching CAN_XR_PMA_GPIO.c's convention: dominant pulls the
// bus low, recessive lets it float high.
const (
	cmdDominant  byte = 'D'
	cmdRecessive byte = 'R'
)

// Config names the device and polling period.
type Config struct {
	Device    string
	Baud      int
	NodeClock time.Duration
}

// PMA is a serial-line backed Transceiver.
type PMA struct {
	cfg Config
	fd  *term.Term
	ind pma.NodeClockIndicator

	stop chan struct{}
	done chan struct{}
}

// Open opens the serial device and sets it to raw mode, grounded on
// serial_port_open.
func Open(cfg Config) (*PMA, error) {
	fd, err := term.Open(cfg.Device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("pma/serial: open %s: %w", cfg.Device, err)
	}
	if cfg.Baud != 0 {
		if err := fd.SetSpeed(cfg.Baud); err != nil {
			fd.Close()
			return nil, fmt.Errorf("pma/serial: set speed %d: %w", cfg.Baud, err)
		}
	}
	return &PMA{cfg: cfg, fd: fd}, nil
}

// Close releases the serial device, stopping any running poll loop first.
func (p *PMA) Close() error {
	if p.stop != nil {
		p.Stop()
	}
	return p.fd.Close()
}

// SetNodeClockIndication installs the upper-layer upcall.
func (p *PMA) SetNodeClockIndication(ind pma.NodeClockIndicator) {
	p.ind = ind
}

// DataReq implements pma.Transceiver: write the one-byte command for the
// requested level. Grounded on serial_port_write.
func (p *PMA) DataReq(level int) {
	cmd := cmdRecessive
	if level == 0 {
		cmd = cmdDominant
	}
	p.fd.Write([]byte{cmd})
}

// Run polls the bridge once per NodeClock period for the last-sampled bus
// level and raises the node clock indication. Blocks until Stop; intended
// to run on its own goroutine.
func (p *PMA) Run() {
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.NodeClock)
	defer ticker.Stop()

	buf := make([]byte, 1)
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			n, err := p.fd.Read(buf)
			if err != nil || n != 1 {
				continue
			}
			level := 1
			if buf[0] == cmdDominant {
				level = 0
			}
			if p.ind != nil {
				p.ind(level)
			}
		}
	}
}

// Stop ends a running Run loop and waits for it to return.
func (p *PMA) Stop() {
	close(p.stop)
	<-p.done
}
