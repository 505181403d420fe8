package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "presensi"

var (
	// CheckIns counts check-in attempts by terminal outcome.
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkins_total",
		Help:      "Check-in attempts by outcome.",
	}, []string{"outcome"})

	// ImportedRows counts spreadsheet rows by registrant kind and result
	// (inserted or skipped).
	ImportedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_rows_total",
		Help:      "Spreadsheet rows processed by import.",
	}, []string{"jenis", "result"})

	Exports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scan_log_exports_total",
		Help:      "Scan log workbooks exported.",
	})

	QRRenders = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "qr_renders_total",
		Help:      "QR images rendered (cache misses).",
	})

	// QueueMessages counts consumed queue messages by type.
	QueueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_messages_total",
		Help:      "Queue messages consumed by type.",
	}, []string{"type"})
)
