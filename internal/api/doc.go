// Package api hosts the operator HTTP server that runs alongside a stage.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/reports for the stage reports published during this process.
package api
