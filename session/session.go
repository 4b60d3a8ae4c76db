// Package session holds the local state of one logical conversation: the
// thread reference, the ordered transcript, and the turn-taking status.
//
// A Session is a value the caller owns and passes to controller operations.
// Resetting a conversation retires the old Session and mints a new one; a
// thread reference is never reused across sessions.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/core/protocol"
)

// Status is the turn-taking state of a session.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusAwaitingReply Status = "awaiting_reply"
	StatusFailed        Status = "failed"
)

var (
	// ErrBusy is returned when a turn is submitted while another turn on
	// the same session is still awaiting its reply.
	ErrBusy = errors.New("session busy: a turn is already awaiting a reply")

	// ErrClosed is returned when an operation targets a session that has
	// been reset or closed, including stale results from an abandoned run.
	ErrClosed = errors.New("session closed")
)

// Session is the local view of one conversation. All methods are safe for
// concurrent use. State transitions taken while a turn is in flight are
// guarded by a generation token so that results resolved after a reset or
// close are discarded instead of applied.
type Session struct {
	id        string
	threadRef string

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	transcript  []protocol.Turn
	status      Status
	generation  uint64
	lastReplyID string
	closed      bool
}

// New creates an idle Session bound to the given remote thread reference.
// The session is assigned a unique UUIDv7 identifier.
func New(threadRef string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        uuid.Must(uuid.NewV7()).String(),
		threadRef: threadRef,
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusIdle,
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// ThreadRef returns the remote thread reference the session is bound to.
func (s *Session) ThreadRef() string {
	return s.threadRef
}

// Context returns a context that is cancelled when the session is closed.
// In-flight waits derive from it so that closing a session stops polling.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Status returns the current turn-taking status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Transcript returns a defensive copy of the conversation transcript.
func (s *Session) Transcript() []protocol.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]protocol.Turn, len(s.transcript))
	copy(copied, s.transcript)
	return copied
}

// LastReplyID returns the identity of the most recent assistant message
// reconciled into the transcript. Used to detect already-seen replies in
// full-history listings.
func (s *Session) LastReplyID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReplyID
}

// Begin appends the user turn, marks the session awaiting a reply, and
// returns the generation token the eventual resolution must present.
// Fails with ErrBusy while a previous turn is unresolved and ErrClosed on a
// retired session. A failed session accepts new turns.
func (s *Session) Begin(turn protocol.Turn) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.status == StatusAwaitingReply {
		return 0, ErrBusy
	}

	s.generation++
	s.transcript = append(s.transcript, turn)
	s.status = StatusAwaitingReply
	return s.generation, nil
}

// Resolve appends the assistant turn produced by the run that Begin
// admitted, records the reply identity, and returns the session to idle.
// Results presented with a stale generation are discarded with ErrClosed.
func (s *Session) Resolve(gen uint64, turn protocol.Turn, replyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation {
		return ErrClosed
	}

	s.transcript = append(s.transcript, turn)
	s.lastReplyID = replyID
	s.status = StatusIdle
	return nil
}

// Release returns the session to idle without appending anything. Used when
// a run completes but produces no new assistant content.
func (s *Session) Release(gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation {
		return ErrClosed
	}

	s.status = StatusIdle
	return nil
}

// Fail marks the session failed and appends the sentinel turn, keeping the
// transcript coherent for display. Guarded like Resolve.
func (s *Session) Fail(gen uint64, sentinel protocol.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation {
		return ErrClosed
	}

	s.transcript = append(s.transcript, sentinel)
	s.status = StatusFailed
	return nil
}

// Close retires the session: outstanding waits are cancelled and any result
// they later produce is discarded. Closing is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	s.cancel()
}

// Closed reports whether the session has been retired.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
