package reason

import (
	"context"
	"fmt"
	"sync"
)

// MockReasoner is a lightweight in-memory Reasoner useful for tests and
// examples. Classifications and draft plans are registered per utterance /
// per intent; FailNext injects consecutive failures for breaker testing.
type MockReasoner struct {
	mu              sync.Mutex
	classifications map[string]*Classification
	plans           map[string]*DraftPlan
	failNext        int
	calls           int
}

// NewMockReasoner constructs an empty mock.
func NewMockReasoner() *MockReasoner {
	return &MockReasoner{
		classifications: make(map[string]*Classification),
		plans:           make(map[string]*DraftPlan),
	}
}

// AddClassification registers a deterministic classification for an utterance.
func (m *MockReasoner) AddClassification(utterance string, c *Classification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifications[utterance] = c
}

// AddPlan registers a draft plan keyed by the primary intent name.
func (m *MockReasoner) AddPlan(intent string, p *DraftPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[intent] = p
}

// FailNext makes the next n calls return an error.
func (m *MockReasoner) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Calls returns how many calls actually reached the mock (fail-fast breaker
// rejections never arrive here).
func (m *MockReasoner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockReasoner) tick() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failNext > 0 {
		m.failNext--
		return fmt.Errorf("mock reasoner failure injected")
	}
	return nil
}

// Classify implements Reasoner.
func (m *MockReasoner) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.tick(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.classifications[req.Utterance]; ok {
		return c, nil
	}
	return &Classification{
		Intents: []Intent{{Name: "unknown", Confidence: 0.1}},
	}, nil
}

// SynthesizePlan implements Reasoner.
func (m *MockReasoner) SynthesizePlan(ctx context.Context, req SynthesizeRequest) (*DraftPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.tick(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.Classification != nil {
		for _, intent := range req.Classification.Intents {
			if p, ok := m.plans[intent.Name]; ok {
				return p, nil
			}
		}
	}
	return &DraftPlan{}, nil
}
