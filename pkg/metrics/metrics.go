// Package metrics exposes Prometheus counters for the MAC/LLC boundary.
// Grounded on runZeroInc-sockstats's pkg/exporter, which wraps network
// connections in a custom prometheus.Collector; here a Recorder instead
// decorates the mac.Indication/mac.Confirmation collaborator pair,
// counting frames and confirmation outcomes as they pass through rather
// than polling external state on every Collect call.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/minimap-xl/sdcc/pkg/mac"
)

// Recorder counts frames and data_conf outcomes as they flow through the
// MAC/LLC boundary. It implements mac.Indication and mac.Confirmation so
// it can be wired in front of (or instead of) the application's own LLC
// collaborator.
type Recorder struct {
	next interface {
		mac.Indication
		mac.Confirmation
	}
	nextErr mac.ErrorIndication

	framesReceived prometheus.Counter
	bytesReceived  prometheus.Counter
	confirmations  *prometheus.CounterVec
	errors         *prometheus.CounterVec
	rxState        *prometheus.GaugeVec
}

// NewRecorder constructs a Recorder that forwards every upcall to next
// after counting it. next may be nil if only metrics are wanted.
func NewRecorder(namespace string, next interface {
	mac.Indication
	mac.Confirmation
}) *Recorder {
	r := &Recorder{
		next: next,
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "CBFF frames successfully received and delivered to LLC.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_bytes_received_total",
			Help:      "Data bytes carried by successfully received frames.",
		}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_confirmations_total",
			Help:      "MAC_Data.confirm outcomes, partitioned by status.",
		}, []string{"status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "RX/TX/handshake errors, partitioned by kind.",
		}, []string{"kind"}),
		rxState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rx_fsm_state",
			Help:      "1 if the receive FSM is currently in the named state, else 0.",
		}, []string{"state"}),
	}
	return r
}

// SetNextError installs the collaborator ErrorIndication is forwarded to
// after counting, mirroring next's role for DataIndication/DataConfirmation.
func (r *Recorder) SetNextError(nextErr mac.ErrorIndication) {
	r.nextErr = nextErr
}

// ErrorIndication implements mac.ErrorIndication: count the error by kind,
// then forward.
func (r *Recorder) ErrorIndication(ts uint64, err error) {
	r.errors.WithLabelValues(err.Error()).Inc()
	if r.nextErr != nil {
		r.nextErr.ErrorIndication(ts, err)
	}
}

// Describe implements prometheus.Collector.
func (r *Recorder) Describe(descs chan<- *prometheus.Desc) {
	r.framesReceived.Describe(descs)
	r.bytesReceived.Describe(descs)
	r.confirmations.Describe(descs)
	r.errors.Describe(descs)
	r.rxState.Describe(descs)
}

// Collect implements prometheus.Collector.
func (r *Recorder) Collect(metrics chan<- prometheus.Metric) {
	r.framesReceived.Collect(metrics)
	r.bytesReceived.Collect(metrics)
	r.confirmations.Collect(metrics)
	r.errors.Collect(metrics)
	r.rxState.Collect(metrics)
}

// DataIndication implements mac.Indication: count the frame, then forward.
func (r *Recorder) DataIndication(ts uint64, frame mac.Frame) {
	r.framesReceived.Inc()
	r.bytesReceived.Add(float64(mac.DataLen(frame.DLC)))
	if r.next != nil {
		r.next.DataIndication(ts, frame)
	}
}

// DataConfirmation implements mac.Confirmation: count the outcome, then
// forward.
func (r *Recorder) DataConfirmation(ts uint64, id uint32, status mac.Status) {
	r.confirmations.WithLabelValues(status.String()).Inc()
	if r.next != nil {
		r.next.DataConfirmation(ts, id, status)
	}
}

// ObserveRxState snapshots the receive FSM's current state as a gauge,
// intended to be sampled periodically from the application's own poll
// loop (the MAC has no ticker of its own to hook this into automatically).
func (r *Recorder) ObserveRxState(state mac.RxState) {
	for _, s := range []mac.RxState{
		mac.RxBusIntegration, mac.RxIdle, mac.RxID, mac.RxRTR, mac.RxIDE,
		mac.RxFDF, mac.RxDLC, mac.RxData, mac.RxCRC, mac.RxCDEL, mac.RxACK,
		mac.RxADEL, mac.RxEOF, mac.RxError,
	} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		r.rxState.WithLabelValues(s.String()).Set(v)
	}
}
