// Package resilience implements the circuit breaker guarding REST calls
// to the interview service.
//
// State transitions:
//
//	Closed --[TripAfter consecutive failures]--> Open
//	Open --[Cooldown elapsed]--> HalfOpen
//	HalfOpen --[ProbeSuccesses successes]--> Closed
//	HalfOpen --[any failure]--> Open
//
// The WebSocket transport does not use the breaker: its reconnection
// policy is a fixed-delay unbounded retry owned by the channel itself.
package resilience
