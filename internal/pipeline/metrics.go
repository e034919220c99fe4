package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/validate"
)

// Metrics exports stage timings and outcomes. A nil *Metrics records
// nothing.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	ocrDuration   *prometheus.HistogramVec
	receipts      *prometheus.CounterVec
	warnings      *prometheus.CounterVec
	inconsistent  *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "receiptminer_stage_duration_seconds",
				Help:    "Duration of each mining stage in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		ocrDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "receiptminer_ocr_call_duration_seconds",
				Help:    "Duration of OCR engine calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"field", "status"},
		),
		receipts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receiptminer_receipts_total",
				Help: "Total number of mined receipts by outcome",
			},
			[]string{"outcome"},
		),
		warnings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receiptminer_field_warnings_total",
				Help: "Field-level failures recovered with sentinel values",
			},
			[]string{"kind"},
		),
		inconsistent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receiptminer_validation_errors_total",
				Help: "Consistency errors reported by the validator",
			},
			[]string{"category", "corrected"},
		),
	}
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) observeOCR(field string, d time.Duration, _ int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ocrDuration.WithLabelValues(field, status).Observe(d.Seconds())
}

func (m *Metrics) observeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.receipts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeFindings(ws receipt.Warnings, errs validate.Errors) {
	if m == nil {
		return
	}
	for _, w := range ws {
		m.warnings.WithLabelValues(string(w.Kind)).Inc()
	}
	for _, e := range errs {
		corrected := "false"
		if e.CorrectionApplied {
			corrected = "true"
		}
		m.inconsistent.WithLabelValues(string(e.Category), corrected).Inc()
	}
}
