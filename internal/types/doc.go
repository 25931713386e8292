// Package types defines the shared data model for the interview-chat
// client: sessions, messages, and the user profile sent on session start.
//
// Everything here is a plain value type. Ownership rules live with the
// components that hold them: the directory owns the session list, the
// stream assembler owns in-flight buffers, and the controller owns the
// notion of the current session.
package types
