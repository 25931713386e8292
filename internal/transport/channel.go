package transport

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/prepdeck/interviewchat/internal/infrastructure/monitoring"
	"github.com/prepdeck/interviewchat/internal/logging"
	"github.com/prepdeck/interviewchat/internal/protocol"
	"github.com/prepdeck/interviewchat/internal/shared/id"
)

// ErrNotConnected is returned by Send when the channel is not in the
// Connected state. Callers retry after reconnection; the channel never
// buffers outbound messages.
var ErrNotConnected = errors.New("transport: channel not connected")

// State is the transport connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Closed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the subset of *websocket.Conn the channel uses, abstracted so
// tests can inject a synthetic connection.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer abstracts websocket dialing.
type Dialer interface {
	Dial(url string, header http.Header) (Conn, error)
}

// WSDialer dials real websocket connections.
type WSDialer struct {
	HandshakeTimeout time.Duration
}

func (d WSDialer) Dial(url string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, resp, err := dialer.Dial(url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// Subscriber receives channel notifications. OnFrame delivers every
// inbound protocol frame verbatim; OnState reports connection
// transitions. Both are called from the channel's goroutines, never with
// internal locks held.
type Subscriber interface {
	OnState(sessionID string, state State)
	OnFrame(sessionID string, frame protocol.Frame)
}

// Options configures a Channel.
type Options struct {
	URL          string // full websocket URL, session already bound
	SessionID    string
	Header       http.Header // bearer token etc.
	WriteTimeout time.Duration
	Dialer       Dialer
	// Delay produces the wait before each reconnection attempt.
	// Defaults to a constant 3s, retried without bound until Close.
	Delay   backoff.BackOff
	IDs     *id.Generator
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Channel owns one logical websocket connection for one session,
// hiding reconnection behind the State/Subscriber interface.
//
// A Channel is bound to its session for life: switching sessions means
// closing this channel and constructing a new one.
type Channel struct {
	sessionID string
	url       string
	header    http.Header
	sub       Subscriber
	dialer    Dialer
	delay     backoff.BackOff
	writeWait time.Duration
	ids       *id.Generator
	log       *logging.Logger
	metrics   *monitoring.Metrics

	mu      sync.Mutex
	writeMu sync.Mutex
	state   State
	conn    Conn
	closed  bool
	retry   *time.Timer
	// attempt invalidates in-flight dials and read loops from superseded
	// connections; bumped on every new dial and on Close.
	attempt uint64
}

// NewChannel constructs a channel in the Disconnected state. Call Open
// to start connecting.
func NewChannel(opts Options, sub Subscriber) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = WSDialer{HandshakeTimeout: 10 * time.Second}
	}
	if opts.Delay == nil {
		opts.Delay = backoff.NewConstantBackOff(3 * time.Second)
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
	return &Channel{
		sessionID: opts.SessionID,
		url:       opts.URL,
		header:    opts.Header,
		sub:       sub,
		dialer:    opts.Dialer,
		delay:     opts.Delay,
		writeWait: opts.WriteTimeout,
		ids:       opts.IDs,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		state:     Disconnected,
	}
}

// SessionID returns the session this channel is bound to.
func (c *Channel) SessionID() string { return c.sessionID }

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open starts connecting. Dial failures never surface to the caller;
// they feed the reconnection cycle instead.
func (c *Channel) Open() {
	c.mu.Lock()
	if c.closed || c.state != Disconnected {
		c.mu.Unlock()
		return
	}
	c.setState(Connecting)
	c.attempt++
	attempt := c.attempt
	c.mu.Unlock()

	c.notify(Connecting)
	go c.dial(attempt)
}

// Send transmits a user message. Valid only while Connected.
func (c *Channel) Send(text string) error {
	c.mu.Lock()
	if c.state != Connected || c.conn == nil {
		c.mu.Unlock()
		c.metrics.SendFailures.Inc()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	data, err := protocol.Encode(protocol.Outbound(text))
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close tears the channel down with the local close code and suppresses
// any scheduled reconnection. Idempotent: calls after the first are
// no-ops.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.attempt++ // invalidate in-flight dials and read loops
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	c.setState(Closed)
	c.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(protocol.CloseNormal, "session closed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
		_ = conn.Close()
	}
	c.notify(Closed)
}

func (c *Channel) dial(attempt uint64) {
	// Correlates every log line from one physical connection across the
	// reconnect cycle.
	connID := c.ids.Conn()
	conn, err := c.dialer.Dial(c.url, c.header)

	c.mu.Lock()
	if c.closed || attempt != c.attempt {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.log.Warn("dial failed",
			zap.String("session_id", c.sessionID),
			zap.String("conn_id", connID),
			zap.Error(err))
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.notify(Reconnecting)
		return
	}
	c.conn = conn
	c.setState(Connected)
	c.mu.Unlock()

	c.metrics.ConnectsTotal.Inc()
	c.log.Info("channel connected",
		zap.String("session_id", c.sessionID),
		zap.String("conn_id", connID))
	c.notify(Connected)
	go c.readLoop(attempt, conn)
}

func (c *Channel) readLoop(attempt uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.readFailed(attempt, err)
			return
		}

		frame, derr := protocol.Decode(data)
		if derr != nil {
			// Malformed frame: a protocol error, not a transport error.
			// Surfaced as an error frame so the stream aborts without
			// touching the connection.
			c.log.Warn("malformed frame",
				zap.String("session_id", c.sessionID),
				zap.Error(derr))
			frame = protocol.Frame{Type: protocol.FrameError, Message: "malformed frame"}
		}
		c.mu.Lock()
		stale := c.closed || attempt != c.attempt
		c.mu.Unlock()
		if stale {
			return
		}

		c.metrics.FramesTotal.WithLabelValues(frame.Type).Inc()
		if frame.Type == protocol.FrameChunk {
			c.metrics.ChunkBytes.Observe(float64(len(frame.Content)))
		}
		c.sub.OnFrame(c.sessionID, frame)
	}
}

func (c *Channel) readFailed(attempt uint64, err error) {
	c.mu.Lock()
	if c.closed || attempt != c.attempt {
		// Superseded connection; teardown already handled.
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	if websocket.IsCloseError(err, protocol.CloseNormal) {
		// The intentional-close code arrived from the peer: the server
		// finished with this connection, so no reconnection.
		c.setState(Disconnected)
		c.mu.Unlock()
		c.log.Info("channel closed by server", zap.String("session_id", c.sessionID))
		c.notify(Disconnected)
		return
	}

	c.log.Warn("abnormal closure",
		zap.String("session_id", c.sessionID),
		zap.Error(err))
	c.scheduleReconnectLocked()
	c.mu.Unlock()
	c.notify(Reconnecting)
}

// scheduleReconnectLocked must be called with c.mu held.
func (c *Channel) scheduleReconnectLocked() {
	c.setState(Reconnecting)
	c.metrics.ReconnectsTotal.Inc()

	delay := c.delay.NextBackOff()
	c.retry = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.retry = nil
		c.setState(Connecting)
		c.attempt++
		attempt := c.attempt
		c.mu.Unlock()

		c.notify(Connecting)
		c.dial(attempt)
	})
}

// setState must be called with c.mu held. Notification happens outside
// the lock via notify.
func (c *Channel) setState(s State) {
	c.state = s
	c.metrics.TransportState.Set(float64(s))
}

func (c *Channel) notify(s State) {
	c.sub.OnState(c.sessionID, s)
}
