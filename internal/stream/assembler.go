package stream

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prepdeck/interviewchat/internal/infrastructure/monitoring"
	"github.com/prepdeck/interviewchat/internal/logging"
	"github.com/prepdeck/interviewchat/internal/protocol"
	"github.com/prepdeck/interviewchat/internal/shared/id"
	"github.com/prepdeck/interviewchat/internal/types"
)

// Sink receives assembler output. OnDelta carries the raw accumulated
// text for lightweight incremental rendering; OnFinal carries the
// finalized immutable message with the formatting transform applied.
type Sink interface {
	OnDelta(sessionID, messageID, text string)
	OnFinal(msg types.Message)
	OnStreamError(sessionID string, err error)
}

// Options configures an Assembler.
type Options struct {
	IDs     *id.Generator
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// buffer holds one in-flight assistant message.
type buffer struct {
	messageID string
	acc       strings.Builder
	finalized bool
}

// Assembler reconstructs one assistant turn from ordered protocol frames.
// At most one buffer exists at a time. Frames arrive from a single read
// loop in order; Abort may race in from the controller on a session
// switch, so buffer state is guarded by a mutex. Sink callbacks run under
// that guard and must return promptly without calling back into the
// assembler.
type Assembler struct {
	sessionID string
	sink      Sink
	ids       *id.Generator
	log       *logging.Logger
	metrics   *monitoring.Metrics

	mu      sync.Mutex
	buf     *buffer
	aborted bool
}

// NewAssembler creates an assembler bound to one session.
func NewAssembler(sessionID string, sink Sink, opts Options) *Assembler {
	if opts.IDs == nil {
		opts.IDs = id.NewGenerator()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewNop()
	}
	return &Assembler{
		sessionID: sessionID,
		sink:      sink,
		ids:       opts.IDs,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
}

// InFlight reports whether an unfinalized buffer exists.
func (a *Assembler) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight()
}

// inFlight must be called with a.mu held.
func (a *Assembler) inFlight() bool {
	return a.buf != nil && !a.buf.finalized
}

// Abort discards any in-flight buffer without emitting a message and
// makes the assembler ignore all further frames. Called when the owning
// session is switched away mid-stream.
func (a *Assembler) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.aborted {
		return
	}
	a.aborted = true
	if a.inFlight() {
		a.metrics.StreamsAborted.Inc()
		a.log.Debug("stream aborted",
			zap.String("session_id", a.sessionID),
			zap.String("message_id", a.buf.messageID))
	}
	a.buf = nil
}

// HandleFrame consumes one inbound protocol frame. Frames that make no
// sense in the current turn state are logged as protocol anomalies and
// never crash the stream.
func (a *Assembler) HandleFrame(f protocol.Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.aborted {
		return
	}

	switch f.Type {
	case protocol.FrameConnected:
		// Transport-level greeting; nothing to assemble.
	case protocol.FrameProcessingStart:
		a.handleStart()
	case protocol.FrameChunk:
		a.handleChunk(f.Content)
	case protocol.FrameComplete:
		a.handleComplete()
	case protocol.FrameError:
		a.handleError(f.Message)
	default:
		a.log.Warn("unknown frame type",
			zap.String("session_id", a.sessionID),
			zap.String("type", f.Type))
	}
}

func (a *Assembler) handleStart() {
	if a.inFlight() {
		// A new turn must not start while the prior one is unfinalized.
		// Protocol anomaly: drop the stale buffer and keep going.
		a.log.Warn("processing_start with unfinalized buffer",
			zap.String("session_id", a.sessionID),
			zap.String("stale_message_id", a.buf.messageID))
		a.metrics.StreamsAborted.Inc()
	}
	a.buf = &buffer{messageID: a.ids.Message()}
}

func (a *Assembler) handleChunk(content string) {
	if !a.inFlight() {
		a.log.Warn("chunk without processing_start",
			zap.String("session_id", a.sessionID))
		return
	}
	a.buf.acc.WriteString(content)
	a.sink.OnDelta(a.sessionID, a.buf.messageID, a.buf.acc.String())
}

func (a *Assembler) handleComplete() {
	if !a.inFlight() {
		a.log.Warn("complete without processing_start",
			zap.String("session_id", a.sessionID))
		return
	}
	a.buf.finalized = true

	msg := types.Message{
		ID:        a.buf.messageID,
		SessionID: a.sessionID,
		Role:      types.RoleAssistant,
		Content:   Render(a.buf.acc.String()),
		Timestamp: time.Now().UTC(),
	}
	a.buf = nil

	a.metrics.MessagesFinalized.Inc()
	a.sink.OnFinal(msg)
}

func (a *Assembler) handleError(message string) {
	if message == "" {
		message = "assistant turn failed"
	}
	if a.inFlight() {
		a.metrics.StreamsAborted.Inc()
	}
	a.buf = nil
	a.sink.OnStreamError(a.sessionID, fmt.Errorf("stream error: %s", message))
}
