// Package metrics exposes Prometheus collectors for the drive engine.
//
// Every method is safe to call on a nil *Metrics, so components can run with
// metrics disabled without branching.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	operationsTotal     *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	bytesStored         prometheus.Counter
	bytesReleased       prometheus.Counter
	quotaRejections     prometheus.Counter
	quotaClamped        prometheus.Counter
	contentDeleteErrors prometheus.Counter
	thumbnailFailures   prometheus.Counter
	rateLimited         *prometheus.CounterVec
}

// New registers the drive collectors on reg. A nil registerer disables
// metrics and returns nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	f := promauto.With(reg)
	return &Metrics{
		operationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drive_operations_total",
				Help: "Drive engine operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drive_operation_duration_seconds",
				Help:    "Duration of drive engine operations",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		bytesStored: f.NewCounter(prometheus.CounterOpts{
			Name: "drive_bytes_stored_total",
			Help: "Bytes charged to drive quotas",
		}),
		bytesReleased: f.NewCounter(prometheus.CounterOpts{
			Name: "drive_bytes_released_total",
			Help: "Bytes released from drive quotas by permanent deletes",
		}),
		quotaRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "drive_quota_rejections_total",
			Help: "Writes rejected because the drive was full",
		}),
		quotaClamped: f.NewCounter(prometheus.CounterOpts{
			Name: "drive_quota_release_clamped_total",
			Help: "Quota releases that would have made usage negative",
		}),
		contentDeleteErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "drive_content_delete_failures_total",
			Help: "Best-effort content deletions that failed",
		}),
		thumbnailFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "drive_thumbnail_failures_total",
			Help: "Thumbnail generations that failed or timed out",
		}),
		rateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drive_rate_limited_total",
				Help: "Requests rejected by the rate limiter by operation class",
			},
			[]string{"class"},
		),
	}
}

// ObserveOperation records one finished operation. err decides the outcome
// label.
func (m *Metrics) ObserveOperation(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) BytesStored(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesStored.Add(float64(n))
}

func (m *Metrics) BytesReleased(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesReleased.Add(float64(n))
}

func (m *Metrics) QuotaRejected() {
	if m == nil {
		return
	}
	m.quotaRejections.Inc()
}

func (m *Metrics) QuotaReleaseClamped() {
	if m == nil {
		return
	}
	m.quotaClamped.Inc()
}

func (m *Metrics) ContentDeleteFailed() {
	if m == nil {
		return
	}
	m.contentDeleteErrors.Inc()
}

func (m *Metrics) ThumbnailFailed() {
	if m == nil {
		return
	}
	m.thumbnailFailures.Inc()
}

func (m *Metrics) RateLimited(class string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(class).Inc()
}
