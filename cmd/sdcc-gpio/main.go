//go:build linux

// Command sdcc-gpio is the cross-target bring-up harness: it runs one CAN
// node against a real bus over two GPIO lines, printing every received
// frame.
//
// Grounded on Cross_Programs/01_can_sw_receiver.c, which wires
// CAN_XR_PMA_GPIO_Init -> CAN_XR_PCS_Init -> CAN_XR_MAC_Common_Init,
// registers a dummy_data_ind print callback, and blocks forever in
// CAN_XR_PMA_GPIO_NodeClock_Ind. Here the GPIO chip/line/timing selection
// comes from a YAML node configuration (pkg/config) rather than the
// original's board-specific compile-time constants, and the node clock
// poller runs on its own goroutine (pkg/pma/gpio.Run) stopped on SIGINT
// instead of the bare-metal program simply never returning.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/minimap-xl/sdcc/pkg/config"
	"github.com/minimap-xl/sdcc/pkg/discovery"
	"github.com/minimap-xl/sdcc/pkg/mac"
	"github.com/minimap-xl/sdcc/pkg/pcs"
	"github.com/minimap-xl/sdcc/pkg/pma/gpio"
	"github.com/minimap-xl/sdcc/pkg/trace"
)

// printingIndication mirrors Cross_Programs/01_can_sw_receiver.c's
// dummy_data_ind: print every frame that arrives, nothing more.
type printingIndication struct {
	tr *trace.Tracer
}

func (p *printingIndication) DataIndication(ts uint64, frame mac.Frame) {
	data := frame.Data[:mac.DataLen(frame.DLC)]
	p.tr.Logf(trace.Recv, "@%d: id=%#x format=%s dlc=%d data=% x", ts, frame.ID, frame.Format, frame.DLC, data)
}

func (p *printingIndication) DataConfirmation(ts uint64, id uint32, status mac.Status) {
	p.tr.Logf(trace.Xmit, "@%d: id=%#x confirm=%s", ts, id, status)
}

func (p *printingIndication) ErrorIndication(ts uint64, err error) {
	p.tr.Logf(trace.Error, "@%d: %v", ts, err)
}

func main() {
	configPath := pflag.StringP("config", "c", "", "Path to this node's YAML configuration (required).")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sdcc-gpio -c node.yaml\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *configPath == "" {
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.PMA.Backend != "gpio" {
		fmt.Fprintf(os.Stderr, "sdcc-gpio: %s: pma.backend must be \"gpio\", got %q\n", *configPath, cfg.PMA.Backend)
		os.Exit(1)
	}

	tr := trace.New(os.Stderr, cfg.LogLevel)
	if cfg.LogDir != "" {
		if err := tr.OpenDailyLog(cfg.LogDir, "%Y-%m-%d.log"); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer tr.Close()
	}

	nodeClock := time.Duration(cfg.PMA.NodeClockMicros) * time.Microsecond
	if nodeClock <= 0 {
		nodeClock = 10 * time.Microsecond
	}

	backend, err := gpio.Open(gpio.Config{
		Chip:      cfg.PMA.Chip,
		TxOffset:  cfg.PMA.TxOffset,
		RxOffset:  cfg.PMA.RxOffset,
		NodeClock: nodeClock,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer backend.Close()

	pcsLayer, err := pcs.New(cfg.BitTiming.ToParameters(), backend)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	m := mac.New(pcsLayer)
	pcsLayer.SetObserver(m)
	backend.SetNodeClockIndication(pcsLayer.Tick)

	coll := &printingIndication{tr: tr}
	m.SetIndication(coll)
	m.SetConfirmation(coll)
	m.SetErrorIndication(coll)

	if cfg.Discovery.Enabled {
		ann, err := discovery.Announce(cfg.Discovery.Instance, 0)
		if err != nil {
			tr.Logf(trace.Error, "discovery: %v", err)
		} else {
			defer ann.Stop()
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	tr.Logf(trace.Info, "%s: listening on %s (tx=%d rx=%d)", cfg.Name, cfg.PMA.Chip, cfg.PMA.TxOffset, cfg.PMA.RxOffset)

	go backend.Run()

	<-sig
	backend.Stop()
}
