// Package token provides token generation and validation utilities.
//
// This package implements cryptographically secure generation and
// verification of the shared secrets the workspace runtime hands out:
// peer tokens gating the sync relay's authenticated mode and AUTH
// passwords for the RESP front-end.
//
// Token Format:
//
//   - Base64 RawURL encoded random bytes (43 characters at the default
//     32-byte length), safe for URLs and headers
//
// Token Hash Format:
//
//   - 64 characters of hex-encoded SHA-256
//
// Security:
//
//   - Uses crypto/rand for CSPRNG
//   - SHA-256 hashing with constant-time comparison
//   - Tokens are never stored, only hashes
package token
