// Package protocol defines the conversation data types shared by the
// session, controller, and transport layers.
package protocol

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a session's local transcript. The transcript is
// append-only and insertion-order significant; it is what a UI renders.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn creates a Turn with the given role and content, stamped with the
// current UTC time.
//
// Example:
//
//	turn := protocol.NewTurn(protocol.RoleUser, "Hello, world!")
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// RemoteMessage is one element of a remote thread's message listing.
// Listings are full history in ascending chronological order, not deltas;
// consumers must deduplicate against what they have already reconciled.
type RemoteMessage struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
