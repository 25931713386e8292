// Package id generates client-side identifiers.
//
// Server-owned entities (sessions, history messages) arrive with their own
// ids; this package only mints ids the client creates locally: provisional
// user messages, assembled assistant messages, and connection attempts.
// ULIDs keep locally minted ids lexicographically ordered by creation time,
// and the prefix makes logs readable (msg_*, conn_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes for locally minted ids.
const (
	MessagePrefix = "msg"
	ConnPrefix    = "conn"
)

// Generator mints prefixed ULIDs.
type Generator struct {
	mu      sync.Mutex // guards entropy
	entropy io.Reader
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy
// source, for deterministic ids in tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

func (g *Generator) generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// Message mints an id for a client-created message.
func (g *Generator) Message() string {
	return fmt.Sprintf("%s_%s", MessagePrefix, g.generate())
}

// Conn mints an id for a connection attempt, used only in logs.
func (g *Generator) Conn() string {
	return fmt.Sprintf("%s_%s", ConnPrefix, g.generate())
}
