// Package metric provides Prometheus metrics collection and exposure for catalogmatch.
//
// # Overview
//
// The package owns a private prometheus.Registry so that metrics never leak
// into (or collide with) the global default registry. Core platform metrics
// cover the query path (search totals, stage durations, hydration gaps), the
// ingestion pipeline (record outcomes, batch durations) and the external
// dependencies (up gauges, probe durations).
//
// Components register additional metrics through the MetricsRegistrar
// interface; the Server type exposes everything on a /metrics endpoint for
// the deployment layer to scrape.
package metric
