// Package metrics records stage counters and durations in a Prometheus
// registry. A CLI run is too short-lived to scrape, so the registry is
// written to a node-exporter textfile when metrics.textfile is configured.
package metrics
