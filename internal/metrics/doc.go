// Package metrics provides Prometheus instrumentation for the hls-vault service.
//
// All metrics are prefixed with "hls_vault_" to avoid naming collisions.
// They cover the HTTP boundary, the sqlite asset store, the transcoding
// pipeline (probe, per-track encode, obfuscation, manifest), and the
// HLS delivery endpoints (segment bytes served, key requests).
//
// Metrics register with the default Prometheus registry via promauto; mount
// promhttp.Handler() on the metrics endpoint to expose them:
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// The package also provides a [Collector] that periodically gathers asset
// counts from a [StatsProvider] (the database) and updates gauges so
// dashboards can chart queue depth and terminal-state totals.
package metrics
