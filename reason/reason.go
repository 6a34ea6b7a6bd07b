package reason

import (
	"context"

	"github.com/hupe1980/intentmesh/core"
)

// Intent is one classified intention behind an utterance.
type Intent struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Entity is one extracted entity mention. Kind identifies the entity type
// ("contact", "email-thread", "datetime"). SlotKey is set when the mention is
// anaphoric ("it", "that email") and names the session reference slot the
// mention points at. Candidates is populated when the reasoner already knows
// the mention matches several referents.
type Entity struct {
	Kind       string           `json:"kind"`
	Value      string           `json:"value"`
	SlotKey    string           `json:"slot_key,omitempty"`
	Candidates []core.Reference `json:"candidates,omitempty"`
}

// Classification is the normalized output of intent/entity extraction.
type Classification struct {
	Intents   []Intent `json:"intents"`
	Entities  []Entity `json:"entities"`
	RiskHints []string `json:"risk_hints,omitempty"`
}

// ClassifyRequest carries one utterance plus the session context that helps
// resolve anaphora.
type ClassifyRequest struct {
	Utterance      string                    `json:"utterance"`
	History        []core.Turn               `json:"history,omitempty"`
	ReferenceSlots map[string]core.Reference `json:"reference_slots,omitempty"`
}

// CapabilityDefinition declaratively exposes a registered capability to the
// reasoner so plan synthesis knows the callable surface.
type CapabilityDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
	Risk        string         `json:"risk"`
	Domain      string         `json:"domain"`
}

// SynthesizeRequest asks for a draft plan satisfying the classified intents
// using only the listed capabilities.
type SynthesizeRequest struct {
	Classification *Classification        `json:"classification"`
	Capabilities   []CapabilityDefinition `json:"capabilities"`
}

// DraftStep is one synthesized step before orchestrator validation. Ids are
// local to the draft; DependsOn references them.
type DraftStep struct {
	ID         string         `json:"id"`
	Capability string         `json:"capability"`
	Args       map[string]any `json:"args,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	Critical   bool           `json:"critical,omitempty"`
}

// DraftPlan is the reasoner's proposed step sequence. The orchestrator
// validates, enriches (disambiguation + verification steps) and types it
// before anything executes.
type DraftPlan struct {
	Steps []DraftStep `json:"steps"`
}

// Reasoner is the minimal interface to the external reasoning dependency.
// Implementations must respect context cancellation; the gateway applies a
// per-call timeout and a circuit breaker on top.
type Reasoner interface {
	// Classify extracts intents and entities from one utterance.
	Classify(ctx context.Context, req ClassifyRequest) (*Classification, error)

	// SynthesizePlan drafts a step sequence for the classified intents.
	SynthesizePlan(ctx context.Context, req SynthesizeRequest) (*DraftPlan, error)
}
