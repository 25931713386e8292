// Package config provides 12-factor configuration for the interview-chat
// client.
//
// Settings are loaded from INTERVIEW_-prefixed environment variables with
// sensible defaults; CLI flags may override them. The user's interview
// profile (name, target position, résumé summary) is a separate YAML file
// because it is user data, not deployment configuration.
//
// Environment variables:
//   - INTERVIEW_API_BASE_URL, INTERVIEW_API_TIMEOUT, INTERVIEW_API_MAX_RETRIES
//   - INTERVIEW_SOCKET_URL, INTERVIEW_SOCKET_RECONNECT_DELAY,
//     INTERVIEW_SOCKET_HANDSHAKE_TIMEOUT, INTERVIEW_SOCKET_WRITE_TIMEOUT
//   - INTERVIEW_LOG_LEVEL, INTERVIEW_LOG_DEV
//   - INTERVIEW_DEBUG_SERVER_ENABLED, INTERVIEW_DEBUG_SERVER_ADDR
package config
