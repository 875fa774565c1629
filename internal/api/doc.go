// Package api hosts the operator HTTP server that runs alongside a harvest.
// Routes:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/summary, /v1/targets and /v1/venues for run progress.
package api
