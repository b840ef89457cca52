package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	StreamConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "panelsync",
			Subsystem: "stream",
			Name:      "connections",
			Help:      "Open pointer stream connections",
		},
	)

	StreamFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "panelsync",
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Inbound pointer stream frames by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	StreamEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "panelsync",
			Subsystem: "stream",
			Name:      "events_dropped_total",
			Help:      "Canvas events not delivered to a slow connection",
		},
	)
)

// Register adds the stream collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(StreamConnections, StreamFrames, StreamEventsDropped)
	})
}
