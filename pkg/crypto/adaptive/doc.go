// Package adaptive provides adaptive encryption for the workspace runtime.
//
// This package implements a cipher abstraction that automatically
// selects an encryption algorithm based on the target architecture.
//
// Supported Algorithms:
//
//   - AES-GCM: Selected on amd64 and arm64
//   - ChaCha20-Poly1305: Selected on other architectures
//
// Features:
//
//   - Architecture-based selection (GOARCH); CPU features are not probed
//   - AEAD: Authenticated encryption with associated data
//   - Thread Safety: All cipher operations are thread-safe
//
// Keys are supplied by the caller; the package does no key derivation.
//
// Usage:
//
//	cipher, err := adaptive.New(key)
//	encrypted, err := cipher.Encrypt(plaintext, aad)
//	plaintext, err := cipher.Decrypt(encrypted, aad)
//
package adaptive
