// Package transport maintains one logical websocket connection per
// interview session.
//
// State machine:
//
//	Disconnected → Connecting → Connected
//	Connected/Connecting --[abnormal close]--> Reconnecting → Connecting
//	any --[Close]--> Closed
//
// Reconnection retries at a fixed delay without bound for as long as the
// owning session stays selected; the controller cancels it by closing the
// channel, which also suppresses already-scheduled attempts. Late events
// from a superseded connection are dropped by an internal attempt counter,
// so nothing observed after Close can reach the subscriber.
package transport
