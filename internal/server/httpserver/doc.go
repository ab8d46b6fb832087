// Package httpserver provides the HTTP/HTTPS server for the workspace runtime.
//
// This package implements the sync extension's peer-to-peer update exchange
// using stdlib net/http:
//
//   - Update endpoints: POST /updates (submit a CRDT update blob),
//     GET /updates?since=<cursor> (fetch updates after a cursor)
//   - Health endpoints: /health, /ready, /metrics
//
// Features:
//
//   - TLS support from a certificate and key file (no automatic reload)
//   - Middleware chain: Recover, RequestID, PeerAuth
//   - Graceful shutdown with configurable timeout
//   - Prometheus metrics integration
package httpserver
