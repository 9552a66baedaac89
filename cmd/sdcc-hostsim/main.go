// Command sdcc-hostsim is the host-side test harness for the CBFF engine:
// it wires one or two nodes onto a simulated wired-AND bus and exercises a
// single MAC_Data.req, printing every indication and confirmation as it
// arrives.
//
// Grounded directly on Host_Programs/01_basic_pma_tests.c and
// 02_transmitter_tests.c, which hand-wire CAN_XR_PMA_Sim_Init ->
// CAN_XR_PCS_Init -> CAN_XR_MAC_Common_Init, register dummy_data_ind /
// dummy_data_conf print callbacks, issue one CAN_XR_MAC_Data_Req with a
// hardcoded identifier and payload, then loop
// CAN_XR_PMA_Sim_NodeClock_Ind(&pma, 1) (idle bus) until data_req_pending
// clears. Here the identifier, payload and tick budget are pflag options
// instead of compile-time constants, and a second node can be attached to
// the same pma.SimBus to observe the frame actually arrive somewhere,
// generalizing the original's implicit single-node loopback test.
package main

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/minimap-xl/sdcc/pkg/config"
	"github.com/minimap-xl/sdcc/pkg/mac"
	"github.com/minimap-xl/sdcc/pkg/metrics"
	"github.com/minimap-xl/sdcc/pkg/pcs"
	"github.com/minimap-xl/sdcc/pkg/pma"
	"github.com/minimap-xl/sdcc/pkg/trace"
)

// printingCollaborator plays the role of dummy_data_ind/dummy_data_conf:
// it only prints what arrives, labeled by the node name it is bound to.
type printingCollaborator struct {
	name   string
	tr     *trace.Tracer
	corrID string
}

func (p *printingCollaborator) DataIndication(ts uint64, frame mac.Frame) {
	data := frame.Data[:mac.DataLen(frame.DLC)]
	p.tr.Logf(trace.Recv, "%s: @%d: id=%#x dlc=%d data=% x", p.name, ts, frame.ID, frame.DLC, data)
}

func (p *printingCollaborator) DataConfirmation(ts uint64, id uint32, status mac.Status) {
	p.tr.Logf(trace.Xmit, "%s: @%d: id=%#x confirm=%s corr=%s", p.name, ts, id, status, p.corrID)
}

func (p *printingCollaborator) ErrorIndication(ts uint64, err error) {
	p.tr.Logf(trace.Error, "%s: @%d: %v", p.name, ts, err)
}

// simNode bundles one node's engine stack, grounded on the Init chain
// 02_transmitter_tests.c performs for a single node.
type simNode struct {
	name string
	pma  *pma.SimNode
	pcs  *pcs.PCS
	mac  *mac.MAC
	coll *printingCollaborator
}

func newSimNode(name string, cfg *config.Node, tr *trace.Tracer, reg bool, promNS string) (*simNode, error) {
	simPMA := pma.NewSimNode()
	pp, err := pcs.New(cfg.BitTiming.ToParameters(), simPMA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	m := mac.New(pp)
	pp.SetObserver(m)
	simPMA.SetNodeClockIndication(pp.Tick)

	coll := &printingCollaborator{name: name, tr: tr}
	var ind mac.Indication = coll
	var conf mac.Confirmation = coll
	var errInd mac.ErrorIndication = coll
	if reg {
		rec := metrics.NewRecorder(promNS, struct {
			mac.Indication
			mac.Confirmation
		}{coll, coll})
		rec.SetNextError(coll)
		if err := prometheus.Register(rec); err != nil {
			return nil, fmt.Errorf("%s: register metrics: %w", name, err)
		}
		ind, conf, errInd = rec, rec, rec
	}
	m.SetIndication(ind)
	m.SetConfirmation(conf)
	m.SetErrorIndication(errInd)

	return &simNode{name: name, pma: simPMA, pcs: pp, mac: m, coll: coll}, nil
}

func parseData(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func main() {
	selfConfigPath := pflag.StringP("config", "c", "", "Path to this node's YAML configuration (required).")
	peerConfigPath := pflag.StringP("peer-config", "p", "", "Path to a second node's YAML configuration, attached to the same simulated bus.")
	sendID := pflag.Uint32P("send-id", "i", 0x345, "11-bit identifier to transmit, as used by 02_transmitter_tests.c.")
	sendData := pflag.StringP("send-data", "d", "ff ff ff ff 3e 3e 3e 3e", "Hex bytes to transmit, space-separated.")
	sendDLC := pflag.IntP("send-dlc", "l", -1, "DLC to transmit; defaults to the byte count of --send-data.")
	noSend := pflag.Bool("no-send", false, "Do not issue a data request; only listen.")
	maxTicks := pflag.IntP("max-ticks", "t", 2000, "Node-clock ticks to run before giving up on the pending request.")
	metricsAddr := pflag.String("metrics-addr", "", "If set, serve this node's Prometheus metrics on this address (e.g. :9400).")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sdcc-hostsim -c node.yaml [-p peer.yaml] [-i 0x345] [-d \"ff ff\"]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *selfConfigPath == "" {
		pflag.Usage()
		os.Exit(2)
	}

	selfCfg, err := config.Load(*selfConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if selfCfg.PMA.Backend != "sim" {
		fmt.Fprintf(os.Stderr, "sdcc-hostsim: %s: pma.backend must be \"sim\" for host simulation, got %q\n", *selfConfigPath, selfCfg.PMA.Backend)
		os.Exit(1)
	}

	tr := trace.New(os.Stderr, selfCfg.LogLevel)
	if selfCfg.LogDir != "" {
		if err := tr.OpenDailyLog(selfCfg.LogDir, "%Y-%m-%d.log"); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer tr.Close()
	}

	serveMetrics := *metricsAddr != ""
	self, err := newSimNode(selfCfg.Name, selfCfg, tr, serveMetrics, "sdcc_hostsim_"+selfCfg.Name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	bus := pma.NewSimBus(self.pma)

	if *peerConfigPath != "" {
		peerCfg, err := config.Load(*peerConfigPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		peer, err := newSimNode(peerCfg.Name, peerCfg, tr, false, "")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		bus.Attach(peer.pma)
	}

	if serveMetrics {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			tr.Logf(trace.Info, "serving metrics on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				tr.Logf(trace.Error, "metrics server: %v", err)
			}
		}()
	}

	// Bus integration: 11 consecutive recessive bits before either engine
	// leaves BUS_INTEGRATION, per [1] 10.9.4.
	quantaPerBit := selfCfg.BitTiming.ToParameters().QuantaPerBit()
	for i := 0; i < 11*quantaPerBit; i++ {
		bus.Step()
	}

	if !*noSend {
		data, err := parseData(*sendData)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sdcc-hostsim: --send-data: %v\n", err)
			os.Exit(1)
		}
		dlc := *sendDLC
		if dlc < 0 {
			dlc = len(data)
		}
		self.coll.corrID = trace.NewCorrelationID()
		tr.Logf(trace.Info, "%s: data_req id=%#x dlc=%d data=% x corr=%s", self.name, *sendID, dlc, data, self.coll.corrID)
		self.mac.DataRequest(0, *sendID, mac.CBFF, dlc, data)
	}

	for i := 0; i < *maxTicks; i++ {
		bus.Step()
	}
}
