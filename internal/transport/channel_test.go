package transport_test

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/prepdeck/interviewchat/internal/logging"
	"github.com/prepdeck/interviewchat/internal/protocol"
	"github.com/prepdeck/interviewchat/internal/transport"
)

type readResult struct {
	data []byte
	err  error
}

// fakeConn is a scriptable transport.Conn.
type fakeConn struct {
	reads chan readResult

	mu     sync.Mutex
	writes [][]byte

	closeOnce sync.Once
	closedCh  chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:    make(chan readResult, 16),
		closedCh: make(chan struct{}),
	}
}

func (f *fakeConn) push(data string) {
	f.reads <- readResult{data: []byte(data)}
}

func (f *fakeConn) fail(err error) {
	f.reads <- readResult{err: err}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-f.reads:
		return websocket.TextMessage, r.data, r.err
	case <-f.closedCh:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closedCh) })
	return nil
}

func (f *fakeConn) sentFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
}

type dialResult struct {
	conn *fakeConn
	err  error
}

// fakeDialer pops one scripted result per dial and records call times.
type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	calls   []time.Time
}

func (d *fakeDialer) Dial(url string, header http.Header) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, time.Now())
	if len(d.results) == 0 {
		return nil, errors.New("no connection scripted")
	}
	r := d.results[0]
	d.results = d.results[1:]
	if r.err != nil {
		return nil, r.err
	}
	return r.conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *fakeDialer) dialTimes() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.calls...)
}

// recorder collects subscriber notifications.
type recorder struct {
	mu      sync.Mutex
	states  []transport.State
	frames  []protocol.Frame
	stateCh chan transport.State
	frameCh chan protocol.Frame
}

func newRecorder() *recorder {
	return &recorder{
		stateCh: make(chan transport.State, 32),
		frameCh: make(chan protocol.Frame, 32),
	}
}

func (r *recorder) OnState(sessionID string, s transport.State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	r.stateCh <- s
}

func (r *recorder) OnFrame(sessionID string, f protocol.Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	r.frameCh <- f
}

func (r *recorder) waitState(t *testing.T, want transport.State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-r.stateCh:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func (r *recorder) waitFrame(t *testing.T) protocol.Frame {
	t.Helper()
	select {
	case f := <-r.frameCh:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return protocol.Frame{}
	}
}

func (r *recorder) stateHistory() []transport.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.State(nil), r.states...)
}

func newChannel(dialer transport.Dialer, delay time.Duration, sub transport.Subscriber) *transport.Channel {
	return transport.NewChannel(transport.Options{
		URL:       "ws://test/ws/interview?session=sess-1",
		SessionID: "sess-1",
		Dialer:    dialer,
		Delay:     backoff.NewConstantBackOff(delay),
	}, sub)
}

func TestConnectsAndForwardsFrames(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	sub := newRecorder()

	ch := newChannel(dialer, time.Second, sub)
	defer ch.Close()

	ch.Open()
	sub.waitState(t, transport.Connected)

	conn.push(`{"type":"processing_start"}`)
	conn.push(`{"type":"chunk","content":"Hi "}`)
	conn.push(`{"type":"chunk","content":"there!"}`)
	conn.push(`{"type":"complete"}`)

	assert.Equal(t, protocol.Frame{Type: protocol.FrameProcessingStart}, sub.waitFrame(t))
	assert.Equal(t, protocol.Frame{Type: protocol.FrameChunk, Content: "Hi "}, sub.waitFrame(t))
	assert.Equal(t, protocol.Frame{Type: protocol.FrameChunk, Content: "there!"}, sub.waitFrame(t))
	assert.Equal(t, protocol.Frame{Type: protocol.FrameComplete}, sub.waitFrame(t))
}

func TestSendRequiresConnected(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	sub := newRecorder()

	ch := newChannel(dialer, time.Second, sub)
	defer ch.Close()

	assert.ErrorIs(t, ch.Send("too early"), transport.ErrNotConnected)

	ch.Open()
	sub.waitState(t, transport.Connected)

	require.NoError(t, ch.Send("Hello"))
	frames := conn.sentFrames()
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"type":"message","message":"Hello"}`, frames[0])
}

func TestReconnectAfterAbnormalClose(t *testing.T) {
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn1}, {conn: conn2}}}
	sub := newRecorder()

	ch := newChannel(dialer, 10*time.Millisecond, sub)
	defer ch.Close()

	ch.Open()
	sub.waitState(t, transport.Connected)

	conn1.fail(&websocket.CloseError{Code: websocket.CloseAbnormalClosure})

	sub.waitState(t, transport.Reconnecting)
	assert.ErrorIs(t, ch.Send("while down"), transport.ErrNotConnected)

	sub.waitState(t, transport.Connecting)
	sub.waitState(t, transport.Connected)

	require.NoError(t, ch.Send("back up"))
	assert.Len(t, conn2.sentFrames(), 1)

	times := dialer.dialTimes()
	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 10*time.Millisecond)
}

func TestDialFailuresRetryAtFixedInterval(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{
		{err: errors.New("refused")},
		{err: errors.New("refused")},
		{conn: conn},
	}}
	sub := newRecorder()

	ch := newChannel(dialer, 5*time.Millisecond, sub)
	defer ch.Close()

	ch.Open()
	sub.waitState(t, transport.Connected)

	times := dialer.dialTimes()
	require.Len(t, times, 3)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 5*time.Millisecond)
	assert.GreaterOrEqual(t, times[2].Sub(times[1]), 5*time.Millisecond)
}

func TestServerNormalCloseDoesNotReconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	sub := newRecorder()

	ch := newChannel(dialer, 5*time.Millisecond, sub)
	defer ch.Close()

	ch.Open()
	sub.waitState(t, transport.Connected)

	conn.fail(&websocket.CloseError{Code: websocket.CloseNormalClosure})
	sub.waitState(t, transport.Disconnected)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, dialer.dialCount())
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	sub := newRecorder()

	ch := newChannel(dialer, time.Second, sub)
	ch.Open()
	sub.waitState(t, transport.Connected)

	ch.Close()
	ch.Close()
	ch.Close()

	closedCount := 0
	for _, s := range sub.stateHistory() {
		if s == transport.Closed {
			closedCount++
		}
	}
	assert.Equal(t, 1, closedCount)
	assert.Equal(t, transport.Closed, ch.State())
	assert.ErrorIs(t, ch.Send("after close"), transport.ErrNotConnected)
}

func TestCloseSuppressesScheduledReconnect(t *testing.T) {
	dialer := &fakeDialer{results: []dialResult{{err: errors.New("refused")}}}
	sub := newRecorder()

	ch := newChannel(dialer, 20*time.Millisecond, sub)
	ch.Open()
	sub.waitState(t, transport.Reconnecting)

	ch.Close()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, dialer.dialCount())
	assert.Equal(t, transport.Closed, ch.State())
}

func TestFramesAfterCloseAreDropped(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	sub := newRecorder()

	ch := newChannel(dialer, time.Second, sub)
	ch.Open()
	sub.waitState(t, transport.Connected)

	ch.Close()
	conn.push(`{"type":"chunk","content":"late"}`)

	select {
	case f := <-sub.frameCh:
		t.Fatalf("frame delivered after close: %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMalformedFrameSurfacesAsProtocolError(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	sub := newRecorder()

	ch := newChannel(dialer, time.Second, sub)
	defer ch.Close()

	ch.Open()
	sub.waitState(t, transport.Connected)

	conn.push(`not json at all`)
	f := sub.waitFrame(t)
	assert.Equal(t, protocol.FrameError, f.Type)

	// The connection survives a malformed frame.
	conn.push(`{"type":"chunk","content":"still alive"}`)
	assert.Equal(t, "still alive", sub.waitFrame(t).Content)
}

func TestDialLogsPrefixedConnID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	sub := newRecorder()

	ch := transport.NewChannel(transport.Options{
		URL:       "ws://test/ws/interview?session=sess-1",
		SessionID: "sess-1",
		Dialer:    dialer,
		Logger:    &logging.Logger{Logger: zap.New(core)},
	}, sub)
	defer ch.Close()

	ch.Open()
	sub.waitState(t, transport.Connected)

	entries := logs.FilterMessage("channel connected").All()
	require.Len(t, entries, 1)
	connID, ok := entries[0].ContextMap()["conn_id"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(connID, "conn_"), "conn_id %q", connID)
}
