// Package ids generates the identifiers used on the wire: ULIDs for
// broker-level message UUIDs and UUIDs for envelope and entity identity.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a time-sortable ULID encoded as a 26-character string.
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewUUID returns a random UUIDv4 string. Used for envelope message ids and
// store entity ids.
func NewUUID() string {
	return uuid.NewString()
}
