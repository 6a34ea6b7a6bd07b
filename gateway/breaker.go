package gateway

import (
	"sync"
	"time"

	"github.com/hupe1980/intentmesh/core"
)

// breakerState enumerates circuit positions.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "CLOSED"
	case stateOpen:
		return "OPEN"
	case stateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerOptions configure threshold rules.
type BreakerOptions struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open successes that
	// closes the circuit again.
	SuccessThreshold int
	// HalfOpenMaxProbes bounds concurrent trial calls while half-open.
	HalfOpenMaxProbes int
	// RecoveryTimeout is the cooldown before an open circuit admits probes.
	RecoveryTimeout time.Duration
	// Now overrides the clock (tests).
	Now func() time.Time
}

// Breaker is the per-dependency circuit breaker. One instance is shared
// process-wide across all concurrent requests to the same dependency; its
// counters are updated atomically under a single mutex and transitions happen
// only through the threshold rules, never by external write.
type Breaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int
	successes int
	probes    int
	openUntil time.Time

	failureThreshold  int
	successThreshold  int
	halfOpenMaxProbes int
	recoveryTimeout   time.Duration
	now               func() time.Time
}

// NewBreaker constructs a closed breaker with the given thresholds.
func NewBreaker(optFns ...func(o *BreakerOptions)) *Breaker {
	opts := BreakerOptions{
		FailureThreshold:  5,
		SuccessThreshold:  2,
		HalfOpenMaxProbes: 1,
		RecoveryTimeout:   30 * time.Second,
		Now:               time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Breaker{
		state:             stateClosed,
		failureThreshold:  opts.FailureThreshold,
		successThreshold:  opts.SuccessThreshold,
		halfOpenMaxProbes: opts.HalfOpenMaxProbes,
		recoveryTimeout:   opts.RecoveryTimeout,
		now:               opts.Now,
	}
}

// Allow reports whether a call may proceed. While open it fails fast with
// core.ErrServiceUnavailable and no network attempt; once the cooldown
// elapses the circuit moves to half-open and admits a bounded number of
// trial calls.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.now().Before(b.openUntil) {
			return core.ErrServiceUnavailable
		}
		b.state = stateHalfOpen
		b.successes = 0
		b.probes = 0
		fallthrough
	case stateHalfOpen:
		if b.probes >= b.halfOpenMaxProbes {
			return core.ErrServiceUnavailable
		}
		b.probes++
		return nil
	default:
		return core.ErrServiceUnavailable
	}
}

// Record feeds the outcome of an admitted call back into the state machine.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		if err != nil {
			b.failures++
			if b.failures >= b.failureThreshold {
				b.trip()
			}
			return
		}
		b.failures = 0
	case stateHalfOpen:
		if b.probes > 0 {
			b.probes--
		}
		if err != nil {
			// Any failure while half-open reopens the circuit.
			b.trip()
			return
		}
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = stateClosed
			b.failures = 0
			b.successes = 0
		}
	case stateOpen:
		// Outcome of a call admitted before the trip; counters already reset.
	}
}

// trip opens the circuit and arms the cooldown. Caller holds the lock.
func (b *Breaker) trip() {
	b.state = stateOpen
	b.failures = 0
	b.successes = 0
	b.probes = 0
	b.openUntil = b.now().Add(b.recoveryTimeout)
}

// State returns the current position label (CLOSED, OPEN, HALF_OPEN).
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
