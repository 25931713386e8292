// Package stream reconstructs assistant turns from ordered protocol
// frames.
//
// One turn runs processing_start → chunk* → complete or error. Chunks
// accumulate raw text surfaced through Sink.OnDelta for cheap partial
// rendering; the full formatting transform runs exactly once, on
// complete, producing the finalized immutable message. An aborted
// assembler emits nothing and ignores frames that straggle in from a
// superseded connection.
package stream
