// Package gateway wraps the external reasoning dependency behind a circuit
// breaker and a per-call timeout. It is the resilience layer between the
// orchestrator and any reason.Reasoner implementation: when the dependency is
// failing, calls fail fast with core.ErrServiceUnavailable instead of piling
// up, and that sentinel stays distinct from genuine reasoning failures so the
// orchestrator can answer honestly.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/logging"
	"github.com/hupe1980/intentmesh/reason"
)

// Options configure the gateway.
type Options struct {
	// FailureThreshold, SuccessThreshold, HalfOpenMaxProbes and
	// RecoveryTimeout parameterize the circuit breaker.
	FailureThreshold  int
	SuccessThreshold  int
	HalfOpenMaxProbes int
	RecoveryTimeout   time.Duration
	// CallTimeout bounds each individual reasoner call, independent of the
	// caller's session TTL.
	CallTimeout time.Duration
	// Logger receives per-call records.
	Logger logging.Logger
}

// Gateway is the resilient front to one reasoning dependency. Breaker state
// is process-wide for the wrapped dependency; construct one Gateway per
// dependency and share it across requests.
type Gateway struct {
	reasoner    reason.Reasoner
	breaker     *Breaker
	callTimeout time.Duration
	logger      logging.Logger
}

// New wraps a Reasoner with breaker and timeout defaults suitable for an
// interactive assistant.
func New(r reason.Reasoner, optFns ...func(o *Options)) *Gateway {
	opts := Options{
		FailureThreshold:  5,
		SuccessThreshold:  2,
		HalfOpenMaxProbes: 1,
		RecoveryTimeout:   30 * time.Second,
		CallTimeout:       15 * time.Second,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	breaker := NewBreaker(func(o *BreakerOptions) {
		o.FailureThreshold = opts.FailureThreshold
		o.SuccessThreshold = opts.SuccessThreshold
		o.HalfOpenMaxProbes = opts.HalfOpenMaxProbes
		o.RecoveryTimeout = opts.RecoveryTimeout
	})
	return &Gateway{
		reasoner:    r,
		breaker:     breaker,
		callTimeout: opts.CallTimeout,
		logger:      opts.Logger,
	}
}

// Classify runs intent/entity extraction through the breaker.
func (g *Gateway) Classify(ctx context.Context, req reason.ClassifyRequest) (*reason.Classification, error) {
	var out *reason.Classification
	err := g.invoke(ctx, "classify", func(ctx context.Context) error {
		var err error
		out, err = g.reasoner.Classify(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SynthesizePlan runs plan synthesis through the breaker.
func (g *Gateway) SynthesizePlan(ctx context.Context, req reason.SynthesizeRequest) (*reason.DraftPlan, error) {
	var out *reason.DraftPlan
	err := g.invoke(ctx, "synthesize_plan", func(ctx context.Context) error {
		var err error
		out, err = g.reasoner.SynthesizePlan(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// State exposes the breaker position for health reporting.
func (g *Gateway) State() string { return g.breaker.State() }

// invoke guards one reasoner call: fail fast while the circuit is open, apply
// the per-call timeout, and feed the outcome back into the breaker.
func (g *Gateway) invoke(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := g.breaker.Allow(); err != nil {
		g.logger.Warn("gateway.fast_fail", "operation", op, "state", g.breaker.State())
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	g.breaker.Record(err)

	if err != nil {
		g.logger.Warn("gateway.call_failed", "operation", op, "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			return core.ErrServiceUnavailable
		}
		return err
	}
	g.logger.Debug("gateway.call_ok", "operation", op, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
