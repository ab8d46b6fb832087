// Package redisserver provides a Redis protocol compatible server for the workspace runtime.
//
// This package implements the RESP2 subset needed to expose a KV definition's
// values over the Redis wire protocol, using only the Go standard library
// (no third-party RESP server).
//
// Supported commands:
//   - PING
//   - AUTH
//   - GET, SET, DEL, EXISTS
//
// QUIT is not handled as a command.
package redisserver
