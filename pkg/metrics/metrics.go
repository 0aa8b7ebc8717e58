package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Operation metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeb_operations_total",
			Help: "Total slot operations by type and result",
		},
		[]string{"op", "result"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codeb_operation_duration_seconds",
			Help:    "Slot operation duration by type",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"op"},
	)

	// Registry/proxy divergence, per (project, environment). 1 means the
	// proxy routes a port the registry does not consider active.
	SlotDivergence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codeb_slot_divergence",
			Help: "Whether the proxy config disagrees with the slot registry",
		},
		[]string{"project", "environment"},
	)

	PortsAllocated = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codeb_ports_allocated",
			Help: "Ports recorded in the SSOT ledger by environment",
		},
		[]string{"environment"},
	)

	AuthzDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeb_authz_denied_total",
			Help: "Denied authorization decisions by reason",
		},
		[]string{"reason"},
	)

	HealthProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeb_health_probes_total",
			Help: "Slot health probes by outcome",
		},
		[]string{"outcome"},
	)

	CleanupScansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codeb_cleanup_scans_total",
			Help: "Periodic cleanup scan cycles",
		},
	)
)

// Register registers all metrics with the default registry. Call once at
// startup.
func Register() {
	prometheus.MustRegister(
		OperationsTotal,
		OperationDuration,
		SlotDivergence,
		PortsAllocated,
		AuthzDeniedTotal,
		HealthProbesTotal,
		CleanupScansTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
