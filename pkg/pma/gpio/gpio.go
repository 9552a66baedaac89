//go:build linux

// Package gpio implements a Linux gpio-cdev backed Physical Medium
// Attachment: a dedicated transmit line driven at every bit boundary and a
// receive line sampled once per node clock period, combined with the same
// wired-AND discipline as every other PMA backend. Generalized from
// CAN_XR_PMA_GPIO.c's LPC1768/LPC4357 bare-metal register pokes
// (FIO0SET/FIO0CLR, GPIO5 SET/CLR) into the portable gpiocdev ABI Linux
// exposes over /dev/gpiochipN.
package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/minimap-xl/sdcc/pkg/pma"
)

// Dominant/recessive line levels, [1] Section 11.2. The SN65HVD232
// transceiver CAN_XR_PMA_GPIO.c targets pulls the bus low (0) for
// dominant and lets it float high (1) for recessive; gpiocdev mirrors that
// convention directly as active-high logical levels.
const (
	dominant  = 0
	recessive = 1
)

// Config names the two GPIO lines this backend drives/samples and the
// node-clock period to poll at.
type Config struct {
	Chip       string // e.g. "gpiochip0"
	TxOffset   int
	RxOffset   int
	NodeClock  time.Duration
}

// PMA is a gpiocdev-backed Transceiver plus a node clock poller.
type PMA struct {
	cfg Config

	chip *gpiocdev.Chip
	tx   *gpiocdev.Line
	rx   *gpiocdev.Line

	ind pma.NodeClockIndicator

	stop chan struct{}
	done chan struct{}
}

// Open requests the transmit and receive lines from the named gpiochip,
// setting the transmit line recessive immediately so as not to perturb
// the bus before the engine starts (CAN_XR_PMA_GPIO_Init's init_gpio,
// gpio_tx_rec() call before PINSEL reconfiguration).
func Open(cfg Config) (*PMA, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("pma/gpio: open chip %s: %w", cfg.Chip, err)
	}

	tx, err := chip.RequestLine(cfg.TxOffset,
		gpiocdev.AsOutput(recessive))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("pma/gpio: request tx line %d: %w", cfg.TxOffset, err)
	}

	rx, err := chip.RequestLine(cfg.RxOffset, gpiocdev.AsInput)
	if err != nil {
		tx.Close()
		chip.Close()
		return nil, fmt.Errorf("pma/gpio: request rx line %d: %w", cfg.RxOffset, err)
	}

	return &PMA{cfg: cfg, chip: chip, tx: tx, rx: rx}, nil
}

// Close releases the GPIO lines and chip handle.
func (p *PMA) Close() error {
	if p.stop != nil {
		p.Stop()
	}
	p.tx.Close()
	p.rx.Close()
	return p.chip.Close()
}

// SetNodeClockIndication installs the upper-layer (pcs.PCS.Tick) upcall.
func (p *PMA) SetNodeClockIndication(ind pma.NodeClockIndicator) {
	p.ind = ind
}

// DataReq implements pma.Transceiver: drive the bus immediately, since the
// PCS layer has already synchronized the call to a bit boundary
// (CAN_XR_PMA_GPIO.c's data_req comment).
func (p *PMA) DataReq(level int) {
	if level != 0 {
		p.tx.SetValue(recessive)
	} else {
		p.tx.SetValue(dominant)
	}
}

// Run starts the node-clock poller: once per cfg.NodeClock period, sample
// the receive line and raise the node clock indication. Blocks until Stop
// is called; intended to run on its own goroutine, replacing
// CAN_XR_PMA_GPIO_NodeClock_Ind's tight TIMER0-synchronized busy loop with
// a ticker appropriate to a non-realtime host OS.
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
			v, err := p.rx.Value()
			if err != nil {
				continue
			}
			if p.ind != nil {
				p.ind(v)
			}
		}
	}
}

// Stop ends a running Run loop and waits for it to return.
func (p *PMA) Stop() {
	close(p.stop)
	<-p.done
}
