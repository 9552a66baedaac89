// Package spi implements a Physical Medium Attachment backend for an
// SPI-attached GPIO expander that exposes the transceiver's TX/RX lines as
// two bits of a single byte register (e.g. an MCP23S08-class expander
// sitting between this host and the CAN transceiver, for boards with no
// spare native GPIO). Uses periph.io's host/conn abstraction, the same
// general host.Init/spireg.Open/Connect shape periph's own platform code
// follows internally.
package spi

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/minimap-xl/sdcc/pkg/pma"
)

const (
	dominant  = 0
	recessive = 1
)

// Register layout of the expander this backend targets: one GPIO output
// bit for TX, one GPIO input bit for RX, read/written as a single byte
// over a basic two-command SPI protocol (write-register, read-register).
const (
	cmdWriteGPIO byte = 0x01
	cmdReadGPIO  byte = 0x02

	txBit = 1 << 0
	rxBit = 1 << 1
)

// Config names the SPI port and polling period.
type Config struct {
	Port      string // e.g. "/dev/spidev0.0", or "" to pick the first available
	MaxHz     physic.Frequency
	NodeClock time.Duration
}

// PMA is an SPI-backed Transceiver.
type PMA struct {
	cfg  Config
	port spi.PortCloser
	conn spi.Conn
	ind  pma.NodeClockIndicator

	txLevel byte

	stop chan struct{}
	done chan struct{}
}

// Open initializes the periph host drivers, opens the SPI port, and sets
// the transmit bit recessive so as not to perturb the bus before the
// engine starts driving it.
func Open(cfg Config) (*PMA, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("pma/spi: host.Init: %w", err)
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("pma/spi: open %s: %w", cfg.Port, err)
	}

	maxHz := cfg.MaxHz
	if maxHz == 0 {
		maxHz = physic.MegaHertz
	}
	conn, err := port.Connect(maxHz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("pma/spi: connect: %w", err)
	}

	p := &PMA{cfg: cfg, port: port, conn: conn, txLevel: recessive}
	if err := p.writeGPIO(); err != nil {
		port.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the SPI port, stopping any running poll loop first.
func (p *PMA) Close() error {
	if p.stop != nil {
		p.Stop()
	}
	return p.port.Close()
}

// SetNodeClockIndication installs the upper-layer upcall.
func (p *PMA) SetNodeClockIndication(ind pma.NodeClockIndicator) {
	p.ind = ind
}

// DataReq implements pma.Transceiver.
func (p *PMA) DataReq(level int) {
	if level == 0 {
		p.txLevel = dominant
	} else {
		p.txLevel = recessive
	}
	p.writeGPIO()
}

func (p *PMA) writeGPIO() error {
	reg := byte(0)
	if p.txLevel != 0 {
		reg |= txBit
	}
	write := []byte{cmdWriteGPIO, reg}
	read := make([]byte, len(write))
	return p.conn.Tx(write, read)
}

func (p *PMA) readGPIO() (int, error) {
	write := []byte{cmdReadGPIO, 0x00}
	read := make([]byte, len(write))
	if err := p.conn.Tx(write, read); err != nil {
		return 0, err
	}
	if read[1]&rxBit != 0 {
		return 1, nil
	}
	return 0, nil
}

// Run polls the expander once per NodeClock period for the sampled bus
// level and raises the node clock indication. Blocks until Stop; intended
// to run on its own goroutine.
func (p *PMA) Run() {
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.NodeClock)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			level, err := p.readGPIO()
			if err != nil {
				continue
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
