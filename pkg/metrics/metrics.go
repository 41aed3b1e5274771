package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Push connection metrics
	ConnectionStatus  *prometheus.GaugeVec
	ReconnectAttempts prometheus.Counter
	HeartbeatsSent    prometheus.Counter
	FramesReceived    *prometheus.CounterVec
	FramesDropped     *prometheus.CounterVec

	// Store metrics
	PushEventsApplied *prometheus.CounterVec
	Loads             *prometheus.CounterVec
	LoadLatency       prometheus.Histogram
	UnreadCount       prometheus.Gauge

	// Polling fallback metrics
	PollTicks prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connection_status",
			Help:      "Current push connection status (1 for the active state, 0 otherwise)",
		}, []string{"status"}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of scheduled reconnection attempts",
		}),
		HeartbeatsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "heartbeats_sent_total",
			Help:      "Total number of keepalive frames sent",
		}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Total number of inbound push frames by type",
		}, []string{"type"}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Total number of inbound push frames dropped",
		}, []string{"reason"}),

		PushEventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "push_events_applied_total",
			Help:      "Total number of push events applied to the aggregate",
		}, []string{"kind"}),
		Loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loads_total",
			Help:      "Total number of paginated fetches by outcome",
		}, []string{"status"}),
		LoadLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "load_duration_seconds",
			Help:      "Duration of paginated fetches",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		UnreadCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "unread_count",
			Help:      "Current unread notification count held by the store",
		}),

		PollTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_ticks_total",
			Help:      "Total number of polling fallback fetch ticks",
		}),
	}
}

// SetConnectionStatus sets the status gauge so exactly one state reads 1.
func (m *Metrics) SetConnectionStatus(status string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == status {
			v = 1.0
		}
		m.ConnectionStatus.WithLabelValues(s).Set(v)
	}
}
