package gateway

import (
	"sync"
	"time"
)

// State is the state of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

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

// BreakerConfig configures breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold int
	// FailureRateThreshold is the failure percentage over the sliding window that
	// opens the breaker, once MinimumCalls outcomes are recorded. Zero disables it.
	FailureRateThreshold int
	MinimumCalls         int
	WindowSize           int
	// SuccessThreshold is the number of half-open successes that closes the breaker
	SuccessThreshold int
	// OpenTimeout is how long the breaker stays open before going half-open
	OpenTimeout time.Duration
	// OnStateChange is called after every transition, outside the breaker lock
	OnStateChange func(name string, from, to State)
}

// Breaker is a process-wide circuit breaker guarding one remote capability.
type Breaker struct {
	mu sync.Mutex

	name   string
	config BreakerConfig
	now    func() time.Time

	state             State
	consecutive       int
	window            []bool // ring of recent outcomes, true is a failure
	windowPos         int
	windowLen         int
	halfOpenSuccesses int
	halfOpenInFlight  int // trial calls admitted while half-open, capped at SuccessThreshold
	openedAt          time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.WindowSize <= 0 {
		config.WindowSize = 10
	}
	if config.MinimumCalls <= 0 || config.MinimumCalls > config.WindowSize {
		config.MinimumCalls = config.WindowSize
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	return &Breaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
		window: make([]bool, config.WindowSize),
	}
}

func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, moving an expired open breaker to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	from, changed := b.expireOpenLocked()
	state := b.state
	b.mu.Unlock()

	if changed {
		b.notify(from, state)
	}
	return state
}

// Allow reports whether a call may go through to the remote capability. While
// half-open at most SuccessThreshold trial calls are in flight; each admitted
// call must be followed by RecordSuccess or RecordFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	from, changed := b.expireOpenLocked()
	state := b.state
	allowed := true
	switch state {
	case StateOpen:
		allowed = false
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.config.SuccessThreshold {
			allowed = false
		} else {
			b.halfOpenInFlight++
		}
	}
	b.mu.Unlock()

	if changed {
		b.notify(from, state)
	}
	return allowed
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	from := b.state
	b.pushLocked(false)
	b.consecutive = 0
	b.releaseTrialLocked()

	if b.state == StateHalfOpen {
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.config.SuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.notify(from, to)
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	from := b.state
	b.pushLocked(true)
	b.consecutive++
	b.releaseTrialLocked()

	switch b.state {
	case StateClosed:
		if b.consecutive >= b.config.FailureThreshold || b.rateExceededLocked() {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		b.transitionLocked(StateOpen)
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.notify(from, to)
	}
}

// ForceOpen trips the breaker regardless of recorded outcomes.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	from := b.state
	b.transitionLocked(StateOpen)
	b.mu.Unlock()

	if from != StateOpen {
		b.notify(from, StateOpen)
	}
}

// Reset closes the breaker and clears its history.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.transitionLocked(StateClosed)
	b.mu.Unlock()

	if from != StateClosed {
		b.notify(from, StateClosed)
	}
}

func (b *Breaker) expireOpenLocked() (State, bool) {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.OpenTimeout {
		b.transitionLocked(StateHalfOpen)
		return StateOpen, true
	}
	return b.state, false
}

func (b *Breaker) pushLocked(failed bool) {
	b.window[b.windowPos] = failed
	b.windowPos = (b.windowPos + 1) % len(b.window)
	if b.windowLen < len(b.window) {
		b.windowLen++
	}
}

func (b *Breaker) rateExceededLocked() bool {
	if b.config.FailureRateThreshold <= 0 || b.windowLen < b.config.MinimumCalls {
		return false
	}
	failures := 0
	for i := 0; i < b.windowLen; i++ {
		if b.window[i] {
			failures++
		}
	}
	return failures*100 >= b.config.FailureRateThreshold*b.windowLen
}

func (b *Breaker) transitionLocked(next State) {
	b.state = next
	b.consecutive = 0
	b.halfOpenSuccesses = 0
	b.halfOpenInFlight = 0

	switch next {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		for i := range b.window {
			b.window[i] = false
		}
		b.windowPos = 0
		b.windowLen = 0
	}
}

func (b *Breaker) releaseTrialLocked() {
	if b.state == StateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}
}

func (b *Breaker) notify(from, to State) {
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, from, to)
	}
}
