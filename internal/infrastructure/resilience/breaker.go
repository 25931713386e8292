package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker is rejecting calls outright.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures breaker behavior.
type Settings struct {
	// TripAfter is the consecutive-failure count that opens the breaker.
	TripAfter uint32
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
	// ProbeSuccesses is the consecutive successes required in half-open
	// state before the breaker closes.
	ProbeSuccesses uint32
	// OnStateChange is called on every transition.
	OnStateChange func(name string, from, to State)
}

// Breaker guards the REST collaborator: after repeated failures it fails
// fast instead of stacking retries on a dead remote, then probes again
// after the cooldown.
type Breaker struct {
	name     string
	settings Settings

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	openUntil time.Time
}

// New creates a circuit breaker with the given settings.
func New(name string, settings Settings) *Breaker {
	if settings.TripAfter == 0 {
		settings.TripAfter = 5
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.ProbeSuccesses == 0 {
		settings.ProbeSuccesses = 1
	}
	return &Breaker{name: name, settings: settings}
}

// Name returns the breaker's name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, applying any pending cooldown expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current(time.Now())
}

// Do runs fn through the breaker. When the breaker is open, fn is not
// called and ErrOpen is returned immediately.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.current(time.Now()) == StateOpen {
		b.mu.Unlock()
		return ErrOpen
	}
	b.mu.Unlock()

	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.current(now)

	if success {
		b.failures = 0
		b.successes++
		if state == StateHalfOpen && b.successes >= b.settings.ProbeSuccesses {
			b.transition(StateClosed, now)
		}
		return
	}

	b.successes = 0
	b.failures++
	if state == StateHalfOpen || b.failures >= b.settings.TripAfter {
		b.transition(StateOpen, now)
	}
}

// current must be called with b.mu held.
func (b *Breaker) current(now time.Time) State {
	if b.state == StateOpen && now.After(b.openUntil) {
		b.transition(StateHalfOpen, now)
	}
	return b.state
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openUntil = now.Add(b.settings.Cooldown)
	}
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
