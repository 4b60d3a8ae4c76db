// Package history archives the transcripts of retired conversation sessions.
// Live sessions are held in memory by the server; an archive is written only
// when a session is reset or deleted, so the store is append-mostly and cold.
package history

import (
	"context"
	"time"

	"github.com/parleyhq/parley/core/protocol"
)

// Archive is the durable record of one finished session.
type Archive struct {
	SessionID string          `json:"session_id"`
	ThreadRef string          `json:"thread_ref"`
	ClosedAt  time.Time       `json:"closed_at"`
	Turns     []protocol.Turn `json:"turns"`
}

// Store persists session archives. Implementations are stateless — they
// perform I/O on each call without caching.
type Store interface {
	// List returns the session ids of all archives. Ids are time-ordered
	// (session ids are UUIDv7, which sort chronologically).
	List(ctx context.Context) ([]string, error)
	// Load retrieves the archive for one session id.
	Load(ctx context.Context, sessionID string) (Archive, error)
	// Save persists an archive, creating or overwriting as needed.
	Save(ctx context.Context, a Archive) error
	// Delete removes an archive. Missing ids are ignored.
	Delete(ctx context.Context, sessionID string) error
}
