package types

import "time"

// SessionStatus describes the lifecycle state of an interview session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Session is one interview conversation as the server reports it.
// The client never mutates a Session directly; updated copies arrive
// from directory refreshes and server-pushed events.
type Session struct {
	ID             string        `json:"id"`
	TargetPosition string        `json:"targetPosition"`
	TargetField    string        `json:"targetField"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastActivity   time.Time     `json:"lastActivity"`
	MessageCount   int           `json:"messageCount"`
	Status         SessionStatus `json:"status"`
}

// Profile carries the user-supplied fields sent when starting a session.
type Profile struct {
	UserName       string `json:"userName" yaml:"userName"`
	TargetPosition string `json:"targetPosition" yaml:"targetPosition"`
	TargetField    string `json:"targetField" yaml:"targetField"`
	ResumeSummary  string `json:"resumeSummary" yaml:"resumeSummary"`
}
