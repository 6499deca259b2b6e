package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/iho/pinledger/internal/domain"
)

const resultOK = "ok"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	Operations       *prometheus.CounterVec
	TransferDuration prometheus.Histogram
	TransferAmount   prometheus.Histogram

	// Snapshot metrics
	SnapshotSaves    *prometheus.CounterVec
	SnapshotDuration prometheus.Histogram

	// Event metrics
	EventsDropped prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Ledger metrics
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinledger_operations_total",
				Help: "Total ledger operations by type and result",
			},
			[]string{"operation", "result"},
		),
		TransferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pinledger_transfer_duration_seconds",
			Help:    "Duration of transfer operations",
			Buckets: prometheus.DefBuckets,
		}),
		TransferAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pinledger_transfer_amount",
			Help:    "Transfer amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),

		// Snapshot metrics
		SnapshotSaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinledger_snapshot_saves_total",
				Help: "Total snapshot saves by result",
			},
			[]string{"result"},
		),
		SnapshotDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pinledger_snapshot_duration_seconds",
			Help:    "Duration of snapshot saves including retries",
			Buckets: prometheus.DefBuckets,
		}),

		// Event metrics
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "pinledger_events_dropped_total",
			Help: "Events dropped because the publisher buffer was full",
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pinledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pinledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"path"},
		),
	}
}

// RecordOperation counts a ledger operation under its error kind.
func (m *Metrics) RecordOperation(operation string, err error) {
	m.Operations.WithLabelValues(operation, result(err)).Inc()
}

// RecordTransfer observes a completed transfer.
func (m *Metrics) RecordTransfer(amount decimal.Decimal, duration time.Duration) {
	m.TransferDuration.Observe(duration.Seconds())
	m.TransferAmount.Observe(amount.InexactFloat64())
}

// RecordSnapshot observes a snapshot save.
func (m *Metrics) RecordSnapshot(duration time.Duration, err error) {
	m.SnapshotDuration.Observe(duration.Seconds())
	m.SnapshotSaves.WithLabelValues(result(err)).Inc()
}

// RecordEventDropped counts an event the publisher could not queue.
func (m *Metrics) RecordEventDropped() {
	m.EventsDropped.Inc()
}

func result(err error) string {
	if err == nil {
		return resultOK
	}
	return domain.KindOf(err).String()
}
