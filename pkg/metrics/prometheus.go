package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	gestures    *prometheus.CounterVec
	broadcasts  *prometheus.CounterVec
	batchSize   prometheus.Histogram
	writesTotal *prometheus.CounterVec
	writeErrors *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on reg, or on the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		gestures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelsync_gestures_total",
				Help: "Pointer gestures started, by kind",
			},
			[]string{"kind"},
		),
		broadcasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelsync_broadcasts_total",
				Help: "Instrument broadcasts, by group",
			},
			[]string{"group"},
		),
		batchSize: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "panelsync_broadcast_panels",
				Help:    "Panels reached by one broadcast",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
			},
		),
		writesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelsync_persistence_writes_total",
				Help: "Persistence writes, by operation",
			},
			[]string{"op"},
		),
		writeErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelsync_persistence_failures_total",
				Help: "Persistence writes that failed or were rejected",
			},
			[]string{"op"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelsync_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "panelsync_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
			},
			[]string{"operation"},
		),
	}
}

// RecordGesture counts a started drag or resize.
func (r *Recorder) RecordGesture(kind string) {
	r.gestures.WithLabelValues(kind).Inc()
}

// RecordBroadcast counts a broadcast and the panels it reached.
func (r *Recorder) RecordBroadcast(group string, panels int) {
	if group == "" {
		group = "none"
	}
	r.broadcasts.WithLabelValues(group).Inc()
	r.batchSize.Observe(float64(panels))
}

// RecordPersistence counts a write and, when err is set, its failure.
func (r *Recorder) RecordPersistence(op string, err error) {
	r.writesTotal.WithLabelValues(op).Inc()
	if err != nil {
		r.writeErrors.WithLabelValues(op).Inc()
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
