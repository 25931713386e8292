// Package protocol defines the JSON frame vocabulary spoken over the
// interview service's bidirectional channel.
//
// Inbound frame order per assistant turn:
//
//	processing_start → chunk* → complete | error
//
// The transport forwards frames verbatim; interpretation belongs to the
// stream assembler. Close code 1000 is reserved for intentional local
// teardown; every other close code is treated as abnormal.
package protocol
