package idgen

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string. Successive calls within the same
// millisecond are strictly increasing.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ShortSuffix returns the trailing n characters of id, lowercased — a
// stable, human-scannable discriminator for display purposes. Returns the
// whole id if it is shorter than n.
func ShortSuffix(id string, n int) string {
	if len(id) > n {
		id = id[len(id)-n:]
	}
	return strings.ToLower(id)
}

// Valid reports whether s parses as a ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
