package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/prepdeck/interviewchat/internal/controller"
	"github.com/prepdeck/interviewchat/internal/transport"
	"github.com/prepdeck/interviewchat/internal/types"
)

// consoleUI renders controller events as terminal lines. Callbacks
// arrive from controller and socket goroutines, so output is serialized
// behind a mutex.
type consoleUI struct {
	mu  sync.Mutex
	out io.Writer

	// streaming tracks whether the last printed line is an in-progress
	// delta, so the next event knows to start a fresh line.
	streaming bool
}

func newConsoleUI(out io.Writer) *consoleUI {
	return &consoleUI{out: out}
}

func (u *consoleUI) printf(format string, args ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.streaming {
		fmt.Fprintln(u.out)
		u.streaming = false
	}
	fmt.Fprintf(u.out, format+"\n", args...)
}

func (u *consoleUI) OnSessionList(sessions []types.Session) {
	u.printf("-- %d session(s) --", len(sessions))
	for _, s := range sessions {
		u.printf("  %s  %s  last active %s",
			s.ID, s.TargetPosition, s.LastActivity.Format("2006-01-02 15:04"))
	}
}

func (u *consoleUI) OnHistory(sessionID string, msgs []types.Message) {
	u.printf("-- session %s (%d message(s)) --", sessionID, len(msgs))
	for _, m := range msgs {
		u.printf("[%s] %s", m.Role, m.Content)
	}
}

func (u *consoleUI) OnMessage(msg types.Message) {
	if msg.Provisional {
		u.printf("[you, sending] %s", msg.Content)
		return
	}
	u.printf("[%s] %s", msg.Role, msg.Content)
}

func (u *consoleUI) OnConfirm(sessionID, messageID string) {
	u.printf("[sent]")
}

func (u *consoleUI) OnRetract(sessionID, messageID string) {
	u.printf("[not sent, retry after reconnect]")
}

func (u *consoleUI) OnDelta(sessionID, messageID, text string) {
	// Redraw the accumulated text in place.
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, "\r[interviewer] %s", text)
	u.streaming = true
}

func (u *consoleUI) OnTransport(sessionID string, state transport.State) {
	u.printf("[connection: %s]", state)
}

func (u *consoleUI) OnNotice(n controller.Notice) {
	u.printf("[%s error] %v", n.Kind, n.Err)
}

func (u *consoleUI) OnNoSession() {
	u.printf("No sessions yet. Use /new to start one.")
}
