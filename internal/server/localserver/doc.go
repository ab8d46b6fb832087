// Package localserver provides Unix socket server for local management.
//
// This package implements a local-only management interface via a Unix
// domain socket. It bypasses normal API key authentication for localhost
// administrative commands, one per line:
//
//   - ping: liveness check
//   - status: server status
//   - snapshot: trigger a snapshot
//   - quit: close the connection
//
// Named pipes are not supported.
//
// Security:
//
//   - Only accessible via the Unix domain socket
//   - File system permissions control access
//   - No API key required (physical/local access only)
package localserver
