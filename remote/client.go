// Package remote defines the ports through which the conversation
// controller talks to a cloud-hosted agent service. Implementations live in
// subpackages; the controller depends only on these interfaces.
package remote

import (
	"context"

	"github.com/parleyhq/parley/core/protocol"
)

// RunStatus is the remote-reported state of an agent run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status is a terminal run state.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// RunHandle identifies one asynchronous agent run on a thread. Handles are
// ephemeral: they exist from run creation until the run reaches a terminal
// status and are then discarded.
type RunHandle struct {
	ID          string    `json:"id"`
	Status      RunStatus `json:"status"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}

// AgentClient is the capability set the controller needs from the agent
// service. Implementations must be safe for concurrent use; every call is
// stateless so a single client may serve many sessions.
type AgentClient interface {
	// CreateThread mints a new remote conversation thread and returns its
	// opaque reference.
	CreateThread(ctx context.Context) (string, error)

	// PostMessage appends a message to the thread's remote history.
	PostMessage(ctx context.Context, threadRef string, role protocol.Role, content string) error

	// StartRun begins an agent run against the thread's current state.
	// The returned handle may already carry a terminal status when the
	// backing service runs synchronously.
	StartRun(ctx context.Context, threadRef, agentRef string) (RunHandle, error)

	// GetRun fetches the current status of a previously started run.
	GetRun(ctx context.Context, threadRef, runID string) (RunHandle, error)

	// ListMessages returns the thread's full message history in ascending
	// chronological order.
	ListMessages(ctx context.Context, threadRef string) ([]protocol.RemoteMessage, error)
}

// Streamer is an optional AgentClient capability for services that push
// incremental output instead of requiring status polls. StreamRun invokes
// emit for each text delta as it arrives and returns the terminal handle.
// A non-nil error from emit aborts the stream.
type Streamer interface {
	StreamRun(ctx context.Context, threadRef, agentRef string, emit func(delta string) error) (RunHandle, error)
}

// CredentialProvider supplies the opaque credential an AgentClient needs to
// authenticate. Callers never inspect the token contents.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}
