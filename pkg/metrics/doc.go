/*
Package metrics exposes the control plane's Prometheus metrics.

Metrics are package-level collectors registered once at startup and
scraped from /metrics:

	codeb_operations_total{op,result}        slot operations
	codeb_operation_duration_seconds{op}     operation latency
	codeb_slot_divergence{project,environment}  proxy vs registry disagreement
	codeb_ports_allocated{environment}       SSOT ledger size
	codeb_authz_denied_total{reason}         denied authorization decisions
	codeb_health_probes_total{outcome}       slot health probes
	codeb_cleanup_scans_total                periodic cleanup cycles

codeb_slot_divergence is the operator's signal for the promote failure
window (proxy reloaded, registry not stored): it flips to 1 when the
written site file routes a port the registry does not consider active.
*/
package metrics
