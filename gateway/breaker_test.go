package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/intentmesh/core"
	"github.com/stretchr/testify/assert"
)

type breakerClock struct {
	t time.Time
}

func (c *breakerClock) Now() time.Time          { return c.t }
func (c *breakerClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(clock *breakerClock) *Breaker {
	return NewBreaker(func(o *BreakerOptions) {
		o.FailureThreshold = 3
		o.SuccessThreshold = 2
		o.HalfOpenMaxProbes = 1
		o.RecoveryTimeout = 30 * time.Second
		o.Now = clock.Now
	})
}

func tripBreaker(b *Breaker) {
	for i := 0; i < 3; i++ {
		_ = b.Allow()
		b.Record(errors.New("downstream failure"))
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := &breakerClock{t: time.Now()}
	b := newTestBreaker(clock)
	assert.Equal(t, "CLOSED", b.State())

	// Two failures and a success do not trip: the counter is consecutive.
	_ = b.Allow()
	b.Record(errors.New("fail"))
	_ = b.Allow()
	b.Record(errors.New("fail"))
	_ = b.Allow()
	b.Record(nil)
	assert.Equal(t, "CLOSED", b.State())

	tripBreaker(b)
	assert.Equal(t, "OPEN", b.State())
	assert.ErrorIs(t, b.Allow(), core.ErrServiceUnavailable)
}

func TestBreaker_HalfOpenProbeAndClose(t *testing.T) {
	clock := &breakerClock{t: time.Now()}
	b := newTestBreaker(clock)
	tripBreaker(b)

	// Before the cooldown elapses nothing is admitted.
	clock.Advance(10 * time.Second)
	assert.ErrorIs(t, b.Allow(), core.ErrServiceUnavailable)

	// After the cooldown one probe is admitted, concurrent ones are not.
	clock.Advance(21 * time.Second)
	assert.NoError(t, b.Allow())
	assert.Equal(t, "HALF_OPEN", b.State())
	assert.ErrorIs(t, b.Allow(), core.ErrServiceUnavailable)

	// Two consecutive probe successes close the circuit again.
	b.Record(nil)
	assert.NoError(t, b.Allow())
	b.Record(nil)
	assert.Equal(t, "CLOSED", b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &breakerClock{t: time.Now()}
	b := newTestBreaker(clock)
	tripBreaker(b)

	clock.Advance(31 * time.Second)
	assert.NoError(t, b.Allow())
	b.Record(errors.New("still down"))
	assert.Equal(t, "OPEN", b.State())

	// The cooldown re-arms from the re-trip, not the original trip.
	assert.ErrorIs(t, b.Allow(), core.ErrServiceUnavailable)
	clock.Advance(31 * time.Second)
	assert.NoError(t, b.Allow())
}
