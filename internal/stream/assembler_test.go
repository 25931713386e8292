package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/interviewchat/internal/protocol"
	"github.com/prepdeck/interviewchat/internal/types"
)

type fakeSink struct {
	deltas []string
	finals []types.Message
	errs   []error
}

func (s *fakeSink) OnDelta(sessionID, messageID, text string) {
	s.deltas = append(s.deltas, text)
}

func (s *fakeSink) OnFinal(msg types.Message) {
	s.finals = append(s.finals, msg)
}

func (s *fakeSink) OnStreamError(sessionID string, err error) {
	s.errs = append(s.errs, err)
}

func start() protocol.Frame { return protocol.Frame{Type: protocol.FrameProcessingStart} }
func chunk(c string) protocol.Frame { return protocol.Frame{Type: protocol.FrameChunk, Content: c} }
func complete() protocol.Frame { return protocol.Frame{Type: protocol.FrameComplete} }
func streamErr(m string) protocol.Frame { return protocol.Frame{Type: protocol.FrameError, Message: m} }

func TestWellFormedTurn(t *testing.T) {
	sink := &fakeSink{}
	a := NewAssembler("sess-1", sink, Options{})

	for _, f := range []protocol.Frame{start(), chunk("Hi "), chunk("there!"), complete()} {
		a.HandleFrame(f)
	}

	require.Len(t, sink.finals, 1)
	msg := sink.finals[0]
	assert.Equal(t, "sess-1", msg.SessionID)
	assert.Equal(t, types.RoleAssistant, msg.Role)
	assert.Equal(t, "<p>Hi there!</p>", msg.Content)
	assert.NotEmpty(t, msg.ID)

	// Deltas carry the raw accumulated text, untransformed.
	assert.Equal(t, []string{"Hi ", "Hi there!"}, sink.deltas)
	assert.False(t, a.InFlight())
}

func TestTransformAppliedExactlyOnce(t *testing.T) {
	sink := &fakeSink{}
	a := NewAssembler("sess-1", sink, Options{})

	a.HandleFrame(start())
	a.HandleFrame(chunk("- **bold** item\n"))
	a.HandleFrame(chunk("- plain item"))
	a.HandleFrame(complete())

	require.Len(t, sink.finals, 1)
	assert.Equal(t,
		"<ul><li><strong>bold</strong> item</li><li>plain item</li></ul>",
		sink.finals[0].Content)
}

func TestErrorDiscardsBuffer(t *testing.T) {
	sink := &fakeSink{}
	a := NewAssembler("sess-1", sink, Options{})

	a.HandleFrame(start())
	a.HandleFrame(chunk("partial"))
	a.HandleFrame(streamErr("model overloaded"))

	assert.Empty(t, sink.finals)
	require.Len(t, sink.errs, 1)
	assert.Contains(t, sink.errs[0].Error(), "model overloaded")
	assert.False(t, a.InFlight())

	// The session stays usable for the next turn.
	a.HandleFrame(start())
	a.HandleFrame(chunk("recovered"))
	a.HandleFrame(complete())
	require.Len(t, sink.finals, 1)
	assert.Equal(t, "<p>recovered</p>", sink.finals[0].Content)
}

func TestAbortEmitsNothingAndIgnoresLateFrames(t *testing.T) {
	sink := &fakeSink{}
	a := NewAssembler("sess-1", sink, Options{})

	a.HandleFrame(start())
	a.HandleFrame(chunk("doomed"))
	a.Abort()

	deltasBefore := len(sink.deltas)
	a.HandleFrame(chunk(" stream"))
	a.HandleFrame(complete())

	assert.Empty(t, sink.finals)
	assert.Len(t, sink.deltas, deltasBefore)
	assert.False(t, a.InFlight())
}

func TestDuplicateProcessingStartDropsStaleBuffer(t *testing.T) {
	sink := &fakeSink{}
	a := NewAssembler("sess-1", sink, Options{})

	a.HandleFrame(start())
	a.HandleFrame(chunk("stale"))
	a.HandleFrame(start()) // anomaly: prior turn never finalized
	a.HandleFrame(chunk("fresh"))
	a.HandleFrame(complete())

	require.Len(t, sink.finals, 1)
	assert.Equal(t, "<p>fresh</p>", sink.finals[0].Content)
}

func TestFramesOutsideTurnAreIgnored(t *testing.T) {
	sink := &fakeSink{}
	a := NewAssembler("sess-1", sink, Options{})

	a.HandleFrame(chunk("orphan"))
	a.HandleFrame(complete())
	a.HandleFrame(protocol.Frame{Type: protocol.FrameConnected})

	assert.Empty(t, sink.finals)
	assert.Empty(t, sink.deltas)
	assert.Empty(t, sink.errs)
}
