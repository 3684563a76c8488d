// Package api implements the admin HTTP API and live event stream of the
// greenhome proxy.
//
// This package provides:
//   - Health, status and metrics endpoints for monitoring
//   - The command journal, filterable by device and status
//   - A resubscribe action that rebuilds the platform subscriber
//   - A WebSocket hub streaming dispatched pub/sub events and command outcomes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Security
//
// Every route except /health requires an HS256 bearer token signed with
// security.jwt.secret (see internal/auth). The WebSocket endpoint takes the
// same token in the token query parameter, since browsers cannot set
// headers on the upgrade request. Viewer tokens may read; the resubscribe
// action needs the admin role.
//
// # Graceful Degradation
//
// The server runs while the platform broker is down: status reports the
// bridge as disconnected and the journal stays readable.
package api
