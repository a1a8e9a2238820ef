// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Pipeline storage and validation
//   - Run submission, status and cancellation
//   - Health checks
//   - Prometheus metrics
package http
