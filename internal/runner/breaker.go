package runner

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrGatewayUnavailable is returned without contacting the gateway while
// the circuit is open.
var ErrGatewayUnavailable = errors.New("agent gateway unavailable: circuit open")

// Default circuit breaker settings.
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 30 * time.Second
)

// CircuitState is the state of a Breaker.
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker stops calls to the gateway after threshold consecutive
// failures. After cooldown a single probe is let through; its outcome
// closes or reopens the circuit.
type Breaker struct {
	state    atomic.Int32
	failures atomic.Int32
	lastFail atomic.Int64
	probing  atomic.Bool
	trips    atomic.Int64

	threshold int32
	cooldown  time.Duration
	now       func() time.Time
}

// NewBreaker creates a closed breaker. Zero values select the defaults.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &Breaker{
		threshold: int32(threshold),
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	for {
		switch CircuitState(b.state.Load()) {
		case CircuitClosed:
			return true

		case CircuitOpen:
			if b.now().Sub(time.Unix(0, b.lastFail.Load())) <= b.cooldown {
				return false
			}
			if !b.state.CompareAndSwap(int32(CircuitOpen), int32(CircuitHalfOpen)) {
				continue
			}
			b.probing.Store(true)
			return true

		case CircuitHalfOpen:
			return b.probing.CompareAndSwap(false, true)
		}
	}
}

// RecordSuccess closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.failures.Store(0)
	b.probing.Store(false)
	b.state.Store(int32(CircuitClosed))
}

// Release ends an in-flight half-open probe without deciding the
// outcome, so the next call probes again. Use it when the call ended for
// reasons unrelated to gateway health.
func (b *Breaker) Release() {
	b.probing.Store(false)
}

// RecordFailure counts a failure and opens the circuit once the
// threshold is reached or a half-open probe fails.
func (b *Breaker) RecordFailure() {
	n := b.failures.Add(1)
	b.lastFail.Store(b.now().UnixNano())

	switch CircuitState(b.state.Load()) {
	case CircuitHalfOpen:
		b.probing.Store(false)
		b.state.Store(int32(CircuitOpen))
	case CircuitClosed:
		if n >= b.threshold && b.state.CompareAndSwap(int32(CircuitClosed), int32(CircuitOpen)) {
			b.trips.Add(1)
		}
	}
}

// State returns the current state.
func (b *Breaker) State() CircuitState {
	return CircuitState(b.state.Load())
}

// Trips returns how many times the circuit has opened.
func (b *Breaker) Trips() int64 {
	return b.trips.Load()
}
