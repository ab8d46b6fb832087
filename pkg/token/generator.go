// Package token provides token generation and hashing utilities.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

// DefaultLength is the default token length in bytes.
const DefaultLength = 32

// PeerTokenPrefix marks sync peer tokens. The logger's redaction layer
// keys off this prefix to mask token values that leak into log fields.
const PeerTokenPrefix = "epat_"

// Generate generates a cryptographically secure random token.
//
// The returned token is Base64 RawURL encoded for safe URL transmission.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength generates a token with the specified byte length.
func GenerateWithLength(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GeneratePeerToken generates a sync peer token carrying the
// redaction-friendly prefix.
func GeneratePeerToken() (string, error) {
	t, err := Generate()
	if err != nil {
		return "", err
	}
	return PeerTokenPrefix + t, nil
}

// GenerateBytes generates random bytes.
func GenerateBytes(length int) ([]byte, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return nil, err
	}
	return bytes, nil
}
