// Package api hosts the status HTTP server exposed while a run is in
// progress. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for a snapshot of the run counters.
package api
