// Package http provides the read-only HTTP endpoints of the trackbridge
// server.
//
// Endpoints:
//   - GET /              service banner
//   - GET /health        channel, bus, progress and breaker state
//   - GET /api/groups    group registry snapshot
//   - GET /api/manifest  capability manifest advertised to the host
//   - GET /api/state     progress and viewer state seen by the controller
//   - GET /metrics       Prometheus exposition
//   - GET /metrics/json  metrics snapshot with breaker statistics
package http
