package types

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single chat message. Immutable once finalized: assistant
// messages are frozen when the stream completes, user messages when the
// server confirms the send.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Provisional marks an optimistically appended user message that has
	// not been confirmed by the server yet. Provisional messages are
	// either reconciled (flag cleared) or retracted, never edited.
	Provisional bool `json:"-"`
}
