package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/reason"
	"github.com/stretchr/testify/assert"
)

func TestGateway_FastFailKeepsLoadOffDependency(t *testing.T) {
	mock := reason.NewMockReasoner()
	mock.FailNext(10)

	gw := New(mock, func(o *Options) {
		o.FailureThreshold = 3
		o.RecoveryTimeout = time.Hour
	})

	ctx := context.Background()
	req := reason.ClassifyRequest{Utterance: "hello"}

	for i := 0; i < 3; i++ {
		_, err := gw.Classify(ctx, req)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrServiceUnavailable, "genuine failures keep their identity while closed")
	}
	assert.Equal(t, "OPEN", gw.State())
	assert.Equal(t, 3, mock.Calls())

	// While open every call fails fast and never reaches the dependency.
	for i := 0; i < 5; i++ {
		_, err := gw.Classify(ctx, req)
		assert.ErrorIs(t, err, core.ErrServiceUnavailable)
	}
	assert.Equal(t, 3, mock.Calls())
}

func TestGateway_SuccessPassesThrough(t *testing.T) {
	mock := reason.NewMockReasoner()
	mock.AddClassification("send it", &reason.Classification{
		Intents: []reason.Intent{{Name: "send_email", Confidence: 0.9}},
	})

	gw := New(mock)
	out, err := gw.Classify(context.Background(), reason.ClassifyRequest{Utterance: "send it"})
	assert.NoError(t, err)
	assert.Equal(t, "send_email", out.Intents[0].Name)
	assert.Equal(t, "CLOSED", gw.State())

	plan, err := gw.SynthesizePlan(context.Background(), reason.SynthesizeRequest{Classification: out})
	assert.NoError(t, err)
	assert.NotNil(t, plan)
}

// stallReasoner blocks until the per-call timeout cancels the context.
type stallReasoner struct{}

func (s *stallReasoner) Classify(ctx context.Context, _ reason.ClassifyRequest) (*reason.Classification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stallReasoner) SynthesizePlan(ctx context.Context, _ reason.SynthesizeRequest) (*reason.DraftPlan, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGateway_TimeoutMapsToServiceUnavailable(t *testing.T) {
	gw := New(&stallReasoner{}, func(o *Options) {
		o.CallTimeout = 10 * time.Millisecond
	})
	_, err := gw.Classify(context.Background(), reason.ClassifyRequest{Utterance: "hello"})
	assert.ErrorIs(t, err, core.ErrServiceUnavailable)
}

func TestGateway_TimeoutsCountTowardTrip(t *testing.T) {
	gw := New(&stallReasoner{}, func(o *Options) {
		o.CallTimeout = 5 * time.Millisecond
		o.FailureThreshold = 2
		o.RecoveryTimeout = time.Hour
	})
	ctx := context.Background()
	_, _ = gw.Classify(ctx, reason.ClassifyRequest{Utterance: "a"})
	_, _ = gw.Classify(ctx, reason.ClassifyRequest{Utterance: "b"})
	assert.Equal(t, "OPEN", gw.State())
}
