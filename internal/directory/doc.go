// Package directory keeps the CRUD view of the user's interview
// sessions, independent of which one is connected.
//
// All remote access goes through one resty client carrying the bearer
// token from the auth gateway, with transport-level retries
// (retryablehttp), client-side rate limiting, and a circuit breaker that
// fails fast when the service is down. Failure policy: the cache changes
// only after the remote confirms, so an error never leaves the list in a
// half-updated state.
package directory
