// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/snapshot for the last persisted harvest snapshot.
//   - GET /v1/rounds/latest for the resolved newest round.
//   - POST /v1/harvest to trigger a run; GET /v1/runs/... for run reports.
package api
