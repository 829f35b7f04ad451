// Package breaker implements a per-host (or per-component) circuit breaker.
//
// Grounded on the breakerState/Clock split in
// 99souls-ariadne/engine/internal/ratelimit/limiter.go, reworked into a
// standalone component so the WASM pool and the Fetcher can each place
// one in front of their own resource without depending on the rate
// limiter package.
package breaker

import (
	"sync"
	"sync/atomic"
	"time"
)

type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Clock abstracts time so breaker transitions are deterministically
// testable with a fake clock.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
	DefaultHalfOpenCap      = 3
)

// Breaker is a lock-free-on-the-hot-path state machine. Allow in the
// Closed state never takes a lock; the Open-state cooldown check and the
// rarer transition paths (failures tripping Open, HalfOpen resolving)
// take the mutex.
type Breaker struct {
	clock             Clock
	failureThreshold  int
	cooldown          time.Duration
	halfOpenCap       int
	state             atomic.Int32
	failureCount      atomic.Int32
	halfOpenInFlight  atomic.Int32
	mu                sync.Mutex
	openedAt          time.Time
}

func New(clock Clock, failureThreshold int, cooldown time.Duration, halfOpenCap int) *Breaker {
	if clock == nil {
		clock = RealClock{}
	}
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if halfOpenCap <= 0 {
		halfOpenCap = DefaultHalfOpenCap
	}
	b := &Breaker{
		clock:            clock,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		halfOpenCap:      halfOpenCap,
	}
	b.state.Store(int32(Closed))
	return b
}

func NewDefault(clock Clock) *Breaker {
	return New(clock, DefaultFailureThreshold, DefaultCooldown, DefaultHalfOpenCap)
}

func (b *Breaker) State() State { return State(b.state.Load()) }

// Allow reports whether a caller may proceed. A HalfOpen admission
// reserves one of the halfOpenCap probe slots; the caller must call
// either Success or Failure exactly once after the attempt completes.
func (b *Breaker) Allow() bool {
	switch State(b.state.Load()) {
	case Closed:
		return true
	case Open:
		b.mu.Lock()
		defer b.mu.Unlock()
		if State(b.state.Load()) != Open {
			return b.Allow()
		}
		if b.clock.Now().Sub(b.openedAt) >= b.cooldown {
			b.state.Store(int32(HalfOpen))
			b.halfOpenInFlight.Store(0)
		} else {
			return false
		}
		fallthrough
	case HalfOpen:
		if State(b.state.Load()) != HalfOpen {
			return false
		}
		if b.halfOpenInFlight.Add(1) > int32(b.halfOpenCap) {
			b.halfOpenInFlight.Add(-1)
			return false
		}
		return true
	}
	return false
}

// Success records a successful attempt.
func (b *Breaker) Success() {
	switch State(b.state.Load()) {
	case Closed:
		b.failureCount.Store(0)
	case HalfOpen:
		b.mu.Lock()
		defer b.mu.Unlock()
		b.halfOpenInFlight.Add(-1)
		if State(b.state.Load()) == HalfOpen {
			b.state.Store(int32(Closed))
			b.failureCount.Store(0)
		}
	}
}

// Failure records a failed attempt, possibly tripping the breaker open.
func (b *Breaker) Failure() {
	switch State(b.state.Load()) {
	case Closed:
		count := b.failureCount.Add(1)
		if count >= int32(b.failureThreshold) {
			b.trip()
		}
	case HalfOpen:
		b.mu.Lock()
		defer b.mu.Unlock()
		b.halfOpenInFlight.Add(-1)
		b.tripLocked()
	}
}

func (b *Breaker) trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripLocked()
}

// tripLocked opens the breaker. Caller must hold b.mu.
func (b *Breaker) tripLocked() {
	b.state.Store(int32(Open))
	b.openedAt = b.clock.Now()
	b.failureCount.Store(0)
}

// OpenedAt returns the time the breaker last transitioned to Open; the
// zero value if it has never opened.
func (b *Breaker) OpenedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openedAt
}
