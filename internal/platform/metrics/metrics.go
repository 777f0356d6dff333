package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	BatchesProcessed  *prometheus.CounterVec
	BatchesRejected   prometheus.Counter
	RowsDropped       prometheus.Counter
	FlagsRaised       *prometheus.CounterVec
	SalarySkipped     prometheus.Counter
	DetectionDuration prometheus.Histogram
	LedgerSubmissions *prometheus.CounterVec
	StaffRegistered   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		BatchesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_batches_processed_total",
			Help: "Payroll batches processed, labeled by terminal status",
		}, []string{"status"}),
		BatchesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payguard_batches_rejected_total",
			Help: "Batches rejected as duplicate submissions",
		}),
		RowsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payguard_rows_dropped_total",
			Help: "Ingested rows dropped by validation",
		}),
		FlagsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_flags_raised_total",
			Help: "Detector flags raised, labeled by flag type",
		}, []string{"type"}),
		SalarySkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payguard_salary_grade_skipped_total",
			Help: "Records skipped by the salary pass for lack of a configured grade range",
		}),
		DetectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "payguard_detection_duration_seconds",
			Help:    "Wall time of a full detector engine run over one batch",
			Buckets: prometheus.DefBuckets,
		}),
		LedgerSubmissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_ledger_submissions_total",
			Help: "Ledger submissions, labeled by contract function and outcome",
		}, []string{"function", "outcome"}),
		StaffRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payguard_staff_registered_total",
			Help: "Staff identities registered off-chain",
		}),
	}
}
