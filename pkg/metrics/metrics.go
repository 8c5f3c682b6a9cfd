// Package metrics instruments the coordinator with Prometheus counters,
// gauges, and histograms, following the promauto pattern used
// throughout the teacher's pkg/metrics/prometheus subpackage.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the coordinator registers.
// A nil *Metrics is valid: every method is a safe no-op, so callers need
// not branch on whether metrics are enabled.
type Metrics struct {
	uploadsTotal       *prometheus.CounterVec
	uploadDuration     prometheus.Histogram
	downloadsTotal     *prometheus.CounterVec
	downloadDuration   prometheus.Histogram
	degradedReadsTotal prometheus.Counter
	unrecoverableTotal prometheus.Counter
	stripeCounter      prometheus.Gauge
	nodeLiveness       *prometheus.GaugeVec
	blockWritesTotal   *prometheus.CounterVec
}

// New registers a fresh set of collectors against reg and returns them.
// Pass prometheus.NewRegistry() in production (one registry per process)
// or nil to use prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raid5_coordinator_uploads_total",
			Help: "Total number of upload requests by outcome.",
		}, []string{"status"}),
		uploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "raid5_coordinator_upload_duration_milliseconds",
			Help:    "Duration of upload requests in milliseconds.",
			Buckets: []float64{5, 25, 100, 500, 1000, 5000, 30000},
		}),
		downloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raid5_coordinator_downloads_total",
			Help: "Total number of download requests by outcome.",
		}, []string{"status"}),
		downloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "raid5_coordinator_download_duration_milliseconds",
			Help:    "Duration of download requests in milliseconds.",
			Buckets: []float64{5, 25, 100, 500, 1000, 5000, 30000},
		}),
		degradedReadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "raid5_coordinator_degraded_reads_total",
			Help: "Total number of reads that required parity reconstruction.",
		}),
		unrecoverableTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "raid5_coordinator_unrecoverable_reads_total",
			Help: "Total number of reads that failed with degraded-unrecoverable.",
		}),
		stripeCounter: factory.NewGauge(prometheus.GaugeOpts{
			Name: "raid5_coordinator_stripe_counter",
			Help: "Current value of the global stripe counter.",
		}),
		nodeLiveness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raid5_coordinator_node_online",
			Help: "1 if the node is currently believed online, 0 otherwise.",
		}, []string{"node_id"}),
		blockWritesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raid5_coordinator_block_writes_total",
			Help: "Total block store attempts by node and outcome.",
		}, []string{"node_id", "status"}),
	}
}

// ObserveUpload records an upload's outcome and latency.
func (m *Metrics) ObserveUpload(duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.uploadsTotal.WithLabelValues(status).Inc()
	m.uploadDuration.Observe(float64(duration.Milliseconds()))
}

// ObserveDownload records a download's outcome and latency.
func (m *Metrics) ObserveDownload(duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.downloadsTotal.WithLabelValues(status).Inc()
	m.downloadDuration.Observe(float64(duration.Milliseconds()))
}

// RecordDegradedRead increments the degraded-read counter.
func (m *Metrics) RecordDegradedRead() {
	if m == nil {
		return
	}
	m.degradedReadsTotal.Inc()
}

// RecordUnrecoverableRead increments the unrecoverable-read counter.
func (m *Metrics) RecordUnrecoverableRead() {
	if m == nil {
		return
	}
	m.unrecoverableTotal.Inc()
}

// SetStripeCounter publishes the current global stripe counter value.
func (m *Metrics) SetStripeCounter(value int) {
	if m == nil {
		return
	}
	m.stripeCounter.Set(float64(value))
}

// SetNodeLiveness publishes a node's current liveness as 1 (online) or 0.
func (m *Metrics) SetNodeLiveness(nodeID string, online bool) {
	if m == nil {
		return
	}
	value := 0.0
	if online {
		value = 1.0
	}
	m.nodeLiveness.WithLabelValues(nodeID).Set(value)
}

// RecordBlockWrite records one block-store attempt against a node.
func (m *Metrics) RecordBlockWrite(nodeID string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.blockWritesTotal.WithLabelValues(nodeID, status).Inc()
}
