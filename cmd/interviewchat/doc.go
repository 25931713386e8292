// Package main is the interview chat terminal client.
//
// The client talks to the interview service over two surfaces:
//
//	REST      → session directory (list, start, history, delete)
//	WebSocket → live chat with streamed assistant replies
//
// The client provides:
//   - automatic reconnection with a fixed retry interval
//   - optimistic send with retract on failure
//   - streamed reply assembly with formatting on completion
//   - an optional local debug/metrics surface
//
// Configuration:
//   - Environment variables (INTERVIEW_* prefix)
//   - CLI flags (override env vars)
//   - INTERVIEW_TOKEN carries the bearer token
//
// Usage:
//
//	# Connect with defaults, open the most recent session
//	INTERVIEW_TOKEN=... ./interviewchat
//
//	# Open a specific session with development logging
//	./interviewchat -session sess_abc123 -dev
//
//	# Expose debug/metrics locally
//	./interviewchat -debug 127.0.0.1:9190
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
