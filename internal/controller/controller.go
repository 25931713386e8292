package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/prepdeck/interviewchat/internal/auth"
	"github.com/prepdeck/interviewchat/internal/directory"
	"github.com/prepdeck/interviewchat/internal/infrastructure/monitoring"
	"github.com/prepdeck/interviewchat/internal/logging"
	"github.com/prepdeck/interviewchat/internal/protocol"
	"github.com/prepdeck/interviewchat/internal/shared/id"
	"github.com/prepdeck/interviewchat/internal/stream"
	"github.com/prepdeck/interviewchat/internal/transport"
	"github.com/prepdeck/interviewchat/internal/types"
)

// ErrNoSession is returned by Send when no session is selected.
var ErrNoSession = errors.New("controller: no session selected")

// Notice kinds, matching the error taxonomy: transport errors recover by
// reconnection, protocol errors abort one stream, remote errors leave
// cached state untouched, auth errors are fatal until re-authentication.
const (
	NoticeTransport = "transport"
	NoticeProtocol  = "protocol"
	NoticeRemote    = "remote"
	NoticeAuth      = "auth"
)

// Notice is a user-visible recoverable failure.
type Notice struct {
	Kind string
	Err  error
}

// UISink is the controller's outward interface to the rendering layer.
// Callbacks arrive from controller and socket goroutines; implementations
// should hand work to their own event loop and return promptly, and must
// not call controller methods synchronously from a callback.
type UISink interface {
	// OnSessionList reports the browsable session list after any change.
	OnSessionList(sessions []types.Session)
	// OnHistory delivers a switched-to session's messages as one batch.
	OnHistory(sessionID string, msgs []types.Message)
	// OnMessage delivers one message: a provisional user echo or a
	// finalized immutable record.
	OnMessage(msg types.Message)
	// OnConfirm marks a provisional message as accepted.
	OnConfirm(sessionID, messageID string)
	// OnRetract rolls back a provisional message that failed to send.
	OnRetract(sessionID, messageID string)
	// OnDelta carries the raw accumulated text of an in-flight stream.
	OnDelta(sessionID, messageID, text string)
	// OnTransport reports connection state for the active session.
	OnTransport(sessionID string, state transport.State)
	// OnNotice surfaces a recoverable failure.
	OnNotice(n Notice)
	// OnNoSession signals that no session exists and one should be
	// created.
	OnNoSession()
}

// Options configures a Controller.
type Options struct {
	SocketURL      string // websocket endpoint; session id appended as a query parameter
	Directory      *directory.Directory
	Tokens         auth.TokenSource
	UI             UISink
	Dialer         transport.Dialer // optional; tests inject synthetic connections
	ReconnectDelay time.Duration
	WriteTimeout   time.Duration
	IDs            *id.Generator
	Logger         *logging.Logger
	Metrics        *monitoring.Metrics
}

// Controller is the single authority for which session is live. It owns
// exactly one transport channel and at most one stream assembler at a
// time, and replaces both wholesale on every switch. All session
// mutations are serialized behind one mutex; events from superseded
// channels are dropped by generation comparison, so a switch is
// synchronous from the caller's perspective even though socket teardown
// is not.
type Controller struct {
	socketURL string
	dir       *directory.Directory
	tokens    auth.TokenSource
	ui        UISink
	dialer    transport.Dialer
	delay     time.Duration
	writeWait time.Duration
	ids       *id.Generator
	log       *logging.Logger
	metrics   *monitoring.Metrics

	mu        sync.Mutex
	currentID string
	gen       uint64
	channel   *transport.Channel
	asm       *stream.Assembler
	chState   transport.State
	closed    bool
}

// New creates a controller. Directory, Tokens, and UI are required.
func New(opts Options) *Controller {
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.IDs == nil {
		opts.IDs = id.NewGenerator()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewNop()
	}
	return &Controller{
		socketURL: opts.SocketURL,
		dir:       opts.Directory,
		tokens:    opts.Tokens,
		ui:        opts.UI,
		dialer:    opts.Dialer,
		delay:     opts.ReconnectDelay,
		writeWait: opts.WriteTimeout,
		ids:       opts.IDs,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		chState:   transport.Disconnected,
	}
}

// ResolveInitial decides the startup session deterministically from
// directory contents plus an optional deep-link hint: the hint when it
// names a known session, else the most recently active session, else
// nothing (prompt creation).
func ResolveInitial(sessions []types.Session, hint string) (string, bool) {
	if hint != "" {
		for _, s := range sessions {
			if s.ID == hint {
				return hint, true
			}
		}
	}
	if len(sessions) == 0 {
		return "", false
	}
	best := sessions[0]
	for _, s := range sessions[1:] {
		if s.LastActivity.After(best.LastActivity) {
			best = s
		}
	}
	return best.ID, true
}

// Start refreshes the directory and selects the initial session.
// Auth failures are fatal; anything else surfaces as a notice.
func (c *Controller) Start(ctx context.Context, hint string) error {
	if err := c.dir.Refresh(ctx); err != nil {
		c.notify(err)
		return err
	}
	sessions := c.dir.Sessions()
	c.ui.OnSessionList(sessions)

	sessionID, ok := ResolveInitial(sessions, hint)
	if !ok {
		c.ui.OnNoSession()
		return nil
	}
	return c.SwitchTo(ctx, sessionID)
}

// SwitchTo makes sessionID the live session. The old channel is closed
// (suppressing its reconnection) and any in-flight stream aborted before
// anything else happens, so no frame from the abandoned session can
// reach the UI during the history fetch. The history then renders as one
// batch and a fresh channel opens. Switching to the current session is a
// no-op.
func (c *Controller) SwitchTo(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("controller: closed")
	}
	if sessionID == c.currentID {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if _, ok := c.dir.Get(sessionID); !ok {
		return fmt.Errorf("controller: unknown session %q", sessionID)
	}

	gen := c.supersede(sessionID)

	history, err := c.dir.History(ctx, sessionID)
	if err != nil {
		// Recoverable: the switch proceeds with an empty transcript and
		// the user gets a retry affordance.
		c.notify(err)
		history = nil
	}
	return c.bind(ctx, sessionID, gen, history)
}

// supersede detaches from the current session and claims a new
// generation for sessionID. Every event wearing an older generation is
// dropped from this moment on, which is what makes the switch
// synchronous for the UI even though channel teardown is not.
func (c *Controller) supersede(sessionID string) uint64 {
	c.mu.Lock()
	oldChannel, oldAsm := c.channel, c.asm
	c.gen++
	gen := c.gen
	c.currentID = sessionID
	c.channel = nil
	c.asm = nil
	c.chState = transport.Disconnected
	c.mu.Unlock()

	if oldChannel != nil {
		oldChannel.Close()
	}
	if oldAsm != nil {
		oldAsm.Abort()
	}
	return gen
}

// bind delivers history (possibly just a greeting) and opens a fresh
// channel for the generation claimed by supersede.
func (c *Controller) bind(ctx context.Context, sessionID string, gen uint64, history []types.Message) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.notify(err)
		return err
	}

	c.ui.OnHistory(sessionID, history)

	asm := stream.NewAssembler(sessionID, &streamSink{c: c, gen: gen}, stream.Options{
		IDs:     c.ids,
		Logger:  c.log,
		Metrics: c.metrics,
	})
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	channel := transport.NewChannel(transport.Options{
		URL:          c.sessionURL(sessionID),
		SessionID:    sessionID,
		Header:       header,
		WriteTimeout: c.writeWait,
		Dialer:       c.dialer,
		Delay:        backoff.NewConstantBackOff(c.delay),
		Logger:       c.log,
		Metrics:      c.metrics,
	}, &channelSub{c: c, gen: gen})

	c.mu.Lock()
	if c.gen != gen {
		// A concurrent switch superseded this one.
		c.mu.Unlock()
		channel.Close()
		asm.Abort()
		return nil
	}
	c.channel = channel
	c.asm = asm
	c.mu.Unlock()

	channel.Open()
	c.metrics.SessionSwitches.Inc()
	c.log.Info("switched session", zap.String("session_id", sessionID))
	return nil
}

// Send transmits user text over the live channel. The message is
// appended optimistically as a provisional record, confirmed when the
// channel accepts it, and retracted when it does not (the user retries
// after reconnection; nothing is buffered).
func (c *Controller) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	sessionID, channel := c.currentID, c.channel
	c.mu.Unlock()

	if sessionID == "" || channel == nil {
		return ErrNoSession
	}

	provisional := types.Message{
		ID:          c.ids.Message(),
		SessionID:   sessionID,
		Role:        types.RoleUser,
		Content:     text,
		Timestamp:   time.Now().UTC(),
		Provisional: true,
	}
	c.ui.OnMessage(provisional)

	if err := channel.Send(text); err != nil {
		c.ui.OnRetract(sessionID, provisional.ID)
		c.ui.OnNotice(Notice{Kind: NoticeTransport, Err: err})
		return err
	}
	c.ui.OnConfirm(sessionID, provisional.ID)
	return nil
}

// CreateSession starts a new session from the profile and switches to
// it. The server's greeting stands in for history, so no fetch happens.
func (c *Controller) CreateSession(ctx context.Context, profile types.Profile) (types.Session, error) {
	session, greeting, err := c.dir.Create(ctx, profile)
	if err != nil {
		c.notify(err)
		return types.Session{}, err
	}
	c.ui.OnSessionList(c.dir.Sessions())

	gen := c.supersede(session.ID)
	if err := c.bind(ctx, session.ID, gen, []types.Message{greeting}); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

// DeleteSession removes a session. Deleting the current session switches
// to the most recently active remaining one, or enters the no-session
// state when none remain.
func (c *Controller) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.dir.Delete(ctx, sessionID); err != nil {
		c.notify(err)
		return err
	}
	c.ui.OnSessionList(c.dir.Sessions())

	c.mu.Lock()
	wasCurrent := sessionID == c.currentID
	c.mu.Unlock()
	if !wasCurrent {
		return nil
	}

	if next, ok := c.dir.MostRecent(); ok {
		return c.SwitchTo(ctx, next.ID)
	}
	c.detach()
	c.ui.OnNoSession()
	return nil
}

// RefreshSessions re-fetches the directory and reconciles the live
// session: when the refreshed list no longer contains it, the controller
// switches to the most recently active remaining session, or enters the
// no-session state when none remain. The live session id never points
// outside the cached list.
func (c *Controller) RefreshSessions(ctx context.Context) error {
	if err := c.dir.Refresh(ctx); err != nil {
		c.notify(err)
		return err
	}
	c.ui.OnSessionList(c.dir.Sessions())

	c.mu.Lock()
	currentID := c.currentID
	c.mu.Unlock()
	if currentID == "" {
		return nil
	}
	if _, ok := c.dir.Get(currentID); ok {
		return nil
	}

	c.log.Info("live session vanished on refresh", zap.String("session_id", currentID))
	if next, ok := c.dir.MostRecent(); ok {
		return c.SwitchTo(ctx, next.ID)
	}
	c.detach()
	c.ui.OnNoSession()
	return nil
}

// CurrentSessionID returns the live session id, or "" when none.
func (c *Controller) CurrentSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID
}

// Status is a point-in-time snapshot for the debug surface.
type Status struct {
	CurrentSessionID string `json:"currentSessionId"`
	TransportState   string `json:"transportState"`
	SessionsCached   int    `json:"sessionsCached"`
	Streaming        bool   `json:"streaming"`
}

// Status reports the controller's current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	currentID := c.currentID
	state := c.chState
	asm := c.asm
	c.mu.Unlock()

	// InFlight takes the assembler's own lock; never call it while
	// holding c.mu, the frame path locks in the opposite order.
	streaming := asm != nil && asm.InFlight()
	return Status{
		CurrentSessionID: currentID,
		TransportState:   state.String(),
		SessionsCached:   c.dir.Len(),
		Streaming:        streaming,
	}
}

// Close tears the controller down. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.detach()
}

// detach drops the live session and its channel/assembler pair.
func (c *Controller) detach() {
	c.mu.Lock()
	oldChannel, oldAsm := c.channel, c.asm
	c.gen++
	c.currentID = ""
	c.channel = nil
	c.asm = nil
	c.chState = transport.Disconnected
	c.mu.Unlock()

	if oldChannel != nil {
		oldChannel.Close()
	}
	if oldAsm != nil {
		oldAsm.Abort()
	}
}

// notify maps an error to its notice kind and surfaces it.
func (c *Controller) notify(err error) {
	kind := NoticeRemote
	if errors.Is(err, auth.ErrNoToken) || errors.Is(err, auth.ErrUnauthorized) {
		kind = NoticeAuth
	}
	c.ui.OnNotice(Notice{Kind: kind, Err: err})
}

func (c *Controller) sessionURL(sessionID string) string {
	return fmt.Sprintf("%s?session=%s", c.socketURL, url.QueryEscape(sessionID))
}

// channelSub routes transport notifications for one channel generation.
// Events from superseded generations are dropped, which is what makes a
// session switch synchronous for everything downstream.
type channelSub struct {
	c   *Controller
	gen uint64
}

func (s *channelSub) OnState(sessionID string, state transport.State) {
	c := s.c
	c.mu.Lock()
	if s.gen != c.gen {
		c.mu.Unlock()
		c.metrics.LateEventsDropped.Inc()
		return
	}
	c.chState = state
	c.mu.Unlock()
	c.ui.OnTransport(sessionID, state)
}

func (s *channelSub) OnFrame(sessionID string, frame protocol.Frame) {
	c := s.c
	c.mu.Lock()
	if s.gen != c.gen || c.asm == nil {
		c.mu.Unlock()
		c.metrics.LateEventsDropped.Inc()
		return
	}
	asm := c.asm
	c.mu.Unlock()

	// Outside the lock: the assembler serializes itself, and an abort
	// racing in from a switch wins because the assembler ignores frames
	// once aborted.
	asm.HandleFrame(frame)
}

// streamSink forwards assembler output to the UI, dropping anything from
// a superseded generation.
type streamSink struct {
	c   *Controller
	gen uint64
}

func (s *streamSink) live() bool {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.gen == s.c.gen
}

func (s *streamSink) OnDelta(sessionID, messageID, text string) {
	if !s.live() {
		s.c.metrics.LateEventsDropped.Inc()
		return
	}
	s.c.ui.OnDelta(sessionID, messageID, text)
}

func (s *streamSink) OnFinal(msg types.Message) {
	if !s.live() {
		s.c.metrics.LateEventsDropped.Inc()
		return
	}
	s.c.ui.OnMessage(msg)
}

func (s *streamSink) OnStreamError(sessionID string, err error) {
	if !s.live() {
		s.c.metrics.LateEventsDropped.Inc()
		return
	}
	s.c.ui.OnNotice(Notice{Kind: NoticeProtocol, Err: err})
}
