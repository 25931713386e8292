// Package controller coordinates the live session: it selects the
// startup session, switches between sessions by replacing the transport
// channel and stream assembler wholesale, sends user messages with
// optimistic provisional echo, and routes every event through a
// generation token so nothing from an abandoned session leaks to the UI.
package controller
