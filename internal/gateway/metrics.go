package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the gateway's supplemental Prometheus surface — additive
// observability, not one of spec.md §4.7's named routes — grounded on
// the pack's Metrics{...}/NewMetrics(reg) shape in Sentinel Gate's
// internal/adapter/inbound/http/metrics.go.
type Metrics struct {
	ConnectedAgents  prometheus.Gauge
	BannedIPs        prometheus.Gauge
	DispatchDuration *prometheus.HistogramVec
	DispatchTotal    *prometheus.CounterVec
	SweepRemovals    prometheus.Counter
}

// NewMetrics registers the gateway's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectedAgents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tunnelgate_connected_agents",
			Help: "Number of agents currently registered.",
		}),
		BannedIPs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tunnelgate_banned_ips",
			Help: "Number of IPs currently in the ban set.",
		}),
		DispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tunnelgate_dispatch_duration_seconds",
			Help:    "Duration of forward dispatches to agents.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		DispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tunnelgate_dispatch_total",
			Help: "Total forward dispatches, labeled by outcome.",
		}, []string{"outcome"}),
		SweepRemovals: factory.NewCounter(prometheus.CounterOpts{
			Name: "tunnelgate_sweep_removals_total",
			Help: "Total sessions removed by the maintenance sweep.",
		}),
	}
}
