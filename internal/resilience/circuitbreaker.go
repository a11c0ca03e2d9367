// Package resilience provides the circuit breaker that protects the
// remote synthesis backend. When the premium service fails repeatedly,
// the breaker opens and speak requests skip straight to the local
// fallback instead of burning a network round trip per utterance.
//
// The breaker is the classic three-state machine: closed (calls flow),
// open (calls rejected until a cooldown elapses), half-open (a few
// probe calls decide whether to close again).
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Execute] while the breaker is open
// and the cooldown has not yet elapsed.
var ErrOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds tuning knobs for a [Breaker].
type Config struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive failures that trips the
	// breaker. Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open before allowing probe
	// calls. Default: 30s.
	Cooldown time.Duration

	// ProbeMax is how many probe calls may run in the half-open state.
	// Default: 2.
	ProbeMax int
}

// Breaker is a three-state circuit breaker, safe for concurrent use.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	probeMax    int

	mu         sync.Mutex
	state      State
	failures   int
	lastFail   time.Time
	probeCalls int
	probeFails int
}

// New creates a [Breaker]; zero-value config fields get defaults.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeMax <= 0 {
		cfg.ProbeMax = 2
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		probeMax:    cfg.ProbeMax,
	}
}

// Execute runs fn unless the breaker rejects the call. In the open
// state it returns [ErrOpen] without invoking fn; in the half-open
// state only a limited number of probes pass through.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFail) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probeCalls = 0
		b.probeFails = 0
		slog.Info("circuit breaker half-open", "name", b.name)

	case StateHalfOpen:
		if b.probeCalls >= b.probeMax {
			b.mu.Unlock()
			return ErrOpen
		}
	}

	probing := b.state == StateHalfOpen
	if probing {
		b.probeCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure updates counters after a failed call. Caller holds b.mu.
func (b *Breaker) onFailure(probing bool) {
	b.lastFail = time.Now()
	if probing {
		b.probeFails++
		b.state = StateOpen
		b.failures = b.maxFailures
		slog.Warn("circuit breaker re-opened after failed probe", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.state = StateOpen
		slog.Warn("circuit breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// onSuccess updates counters after a successful call. Caller holds b.mu.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		if b.probeCalls-b.probeFails >= b.probeMax {
			b.state = StateClosed
			b.failures = 0
			b.probeCalls = 0
			b.probeFails = 0
			slog.Info("circuit breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State returns the breaker's current state, reporting half-open when
// the open cooldown has elapsed (the transition itself happens on the
// next Execute).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.lastFail) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probeCalls = 0
	b.probeFails = 0
}
