// Package orchestrator turns one user turn plus session context into a
// validated ExecutionPlan. It delegates intent/entity extraction and plan
// synthesis to the reasoning gateway, resolves anaphoric references against
// the session's reference slots, inserts explicit disambiguation steps for
// ambiguous referents (guessing the best match is not permitted) and
// schedules a non-mutating verification step ahead of every risky mutation.
//
// There is no lexical fallback: when the gateway reports
// core.ErrServiceUnavailable the orchestrator propagates it so the caller can
// answer with a fixed, honest "temporarily unavailable" message.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/gateway"
	"github.com/hupe1980/intentmesh/internal/util"
	"github.com/hupe1980/intentmesh/logging"
	"github.com/hupe1980/intentmesh/reason"
	"github.com/hupe1980/intentmesh/tool"
)

// Clarification asks the user for more input instead of executing anything.
type Clarification struct {
	Question   string           `json:"question"`
	Candidates []core.Reference `json:"candidates,omitempty"`
}

// Options configure an Orchestrator.
type Options struct {
	// MaxUtteranceLen rejects oversized input before any reasoning call.
	MaxUtteranceLen int
	// MinIntentConfidence is the floor under which the orchestrator asks for
	// clarification instead of planning.
	MinIntentConfidence float64
	// VerifyRiskFloor is the lowest risk level that gets a mandatory
	// verification step scheduled ahead of it.
	VerifyRiskFloor core.Risk
	// Logger receives planning records.
	Logger logging.Logger
}

// Orchestrator builds plans from utterances. Stateless apart from its
// collaborators; safe for concurrent use.
type Orchestrator struct {
	gateway       *gateway.Gateway
	registry      *tool.Registry
	maxUtterance  int
	minConfidence float64
	verifyFloor   core.Risk
	logger        logging.Logger
}

// New constructs an Orchestrator.
func New(gw *gateway.Gateway, registry *tool.Registry, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxUtteranceLen:     4096,
		MinIntentConfidence: 0.3,
		VerifyRiskFloor:     core.RiskMedium,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		gateway:       gw,
		registry:      registry,
		maxUtterance:  opts.MaxUtteranceLen,
		minConfidence: opts.MinIntentConfidence,
		verifyFloor:   opts.VerifyRiskFloor,
		logger:        opts.Logger,
	}
}

// Plan converts an utterance into an ExecutionPlan or a Clarification.
// Exactly one of the two is non-nil on a nil error. A malformed utterance
// fails with *core.ValidationError before any reasoning call; a gateway
// outage surfaces core.ErrServiceUnavailable unchanged.
func (o *Orchestrator) Plan(ctx context.Context, utterance string, sess *core.Session) (*core.ExecutionPlan, *Clarification, error) {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return nil, nil, &core.ValidationError{Field: "utterance", Message: "utterance is empty"}
	}
	if len(trimmed) > o.maxUtterance {
		return nil, nil, &core.ValidationError{Field: "utterance", Message: fmt.Sprintf("utterance exceeds %d characters", o.maxUtterance)}
	}

	classification, err := o.gateway.Classify(ctx, reason.ClassifyRequest{
		Utterance:      trimmed,
		History:        sess.RecentTurns(),
		ReferenceSlots: sess.ReferenceSnapshot(),
	})
	if err != nil {
		return nil, nil, o.translate(err, "classify")
	}

	if !o.confident(classification) {
		return nil, &Clarification{Question: "I couldn't work out what you'd like me to do. Could you rephrase?"}, nil
	}

	entities, clarification := o.resolveReferences(classification.Entities, sess)
	if clarification != nil {
		return nil, clarification, nil
	}
	classification.Entities = entities

	draft, err := o.gateway.SynthesizePlan(ctx, reason.SynthesizeRequest{
		Classification: classification,
		Capabilities:   o.definitions(),
	})
	if err != nil {
		return nil, nil, o.translate(err, "synthesize")
	}
	if len(draft.Steps) == 0 {
		return nil, &Clarification{Question: "I couldn't find a way to do that with the capabilities I have. Could you rephrase?"}, nil
	}

	plan, clarification, err := o.build(draft, classification, sess)
	if err != nil || clarification != nil {
		return nil, clarification, err
	}

	if err := plan.Validate(); err != nil {
		return nil, nil, fmt.Errorf("synthesized plan invalid: %w", err)
	}
	o.logger.Info("orchestrator.planned", "plan_id", plan.ID, "session_id", sess.ID, "steps", len(plan.Steps))
	return plan, nil, nil
}

// confident reports whether any classified intent clears the floor.
func (o *Orchestrator) confident(c *reason.Classification) bool {
	for _, intent := range c.Intents {
		if intent.Name != "unknown" && intent.Confidence >= o.minConfidence {
			return true
		}
	}
	return false
}

// resolveReferences resolves anaphoric entities against session reference
// slots before anything else gets to guess. A mention pointing at an empty
// slot yields a clarification, not a lookup.
func (o *Orchestrator) resolveReferences(entities []reason.Entity, sess *core.Session) ([]reason.Entity, *Clarification) {
	out := make([]reason.Entity, 0, len(entities))
	for _, entity := range entities {
		if entity.SlotKey != "" && len(entity.Candidates) == 0 {
			ref, ok := sess.GetReference(entity.SlotKey)
			if !ok {
				return nil, &Clarification{
					Question: fmt.Sprintf("I'm not sure what %q refers to. Could you be more specific?", entity.Value),
				}
			}
			entity.Candidates = []core.Reference{ref}
		}
		out = append(out, entity)
	}
	return out, nil
}

// build types the draft into an ExecutionPlan: copies risk/domain from the
// registry, validates arguments against capability schemas, then inserts
// disambiguation and verification steps.
func (o *Orchestrator) build(draft *reason.DraftPlan, classification *reason.Classification, sess *core.Session) (*core.ExecutionPlan, *Clarification, error) {
	plan := &core.ExecutionPlan{
		ID:        util.NewID(),
		SessionID: sess.ID,
		Created:   time.Now().UTC(),
	}

	for _, ds := range draft.Steps {
		cap, ok := o.registry.Lookup(ds.Capability)
		if !ok {
			return nil, nil, fmt.Errorf("synthesized plan references unknown capability %q", ds.Capability)
		}
		if err := o.registry.ValidateArgs(ds.Capability, ds.Args); err != nil {
			return nil, nil, fmt.Errorf("synthesized step %q rejected: %w", ds.Capability, err)
		}
		id := ds.ID
		if id == "" {
			id = util.NewID()
		}
		plan.Steps = append(plan.Steps, core.ToolCall{
			ID:         id,
			Capability: cap.Name(),
			Domain:     cap.Domain(),
			Risk:       cap.Risk(),
			Args:       ds.Args,
			DependsOn:  append([]string(nil), ds.DependsOn...),
			Critical:   ds.Critical,
		})
	}

	if clarification := o.insertDisambiguation(plan, classification); clarification != nil {
		return nil, clarification, nil
	}
	o.insertVerification(plan)

	return plan, nil, nil
}

// insertDisambiguation adds a lookup step ahead of every mutating step whose
// referent is ambiguous. Without a registered resolver for the entity kind
// the user has to choose directly.
func (o *Orchestrator) insertDisambiguation(plan *core.ExecutionPlan, classification *reason.Classification) *Clarification {
	for _, entity := range classification.Entities {
		if len(entity.Candidates) < 2 {
			continue
		}
		resolver, ok := o.registry.ResolverFor(entity.Kind)
		if !ok {
			return &Clarification{
				Question:   fmt.Sprintf("%q matches several %ss. Which one did you mean?", entity.Value, entity.Kind),
				Candidates: entity.Candidates,
			}
		}

		step := core.ToolCall{
			ID:         util.NewID(),
			Capability: resolver.Name(),
			Domain:     resolver.Domain(),
			Risk:       resolver.Risk(),
			Args: map[string]any{
				"query": entity.Value,
				"kind":  entity.Kind,
			},
			Critical: true,
		}

		attached := false
		for i := range plan.Steps {
			if !plan.Steps[i].Risk.Mutating() {
				continue
			}
			if mentionsEntity(plan.Steps[i].Args, entity.Value) {
				plan.Steps[i].DependsOn = append(plan.Steps[i].DependsOn, step.ID)
				attached = true
			}
		}
		if !attached {
			// No argument names the entity; gate every mutating step.
			for i := range plan.Steps {
				if plan.Steps[i].Risk.Mutating() {
					plan.Steps[i].DependsOn = append(plan.Steps[i].DependsOn, step.ID)
					attached = true
				}
			}
		}
		if attached {
			plan.Steps = append(plan.Steps, step)
		}
	}
	return nil
}

// insertVerification schedules the built-in consistency re-check as a
// dependency of every step at or above the risk floor.
func (o *Orchestrator) insertVerification(plan *core.ExecutionPlan) {
	if _, ok := o.registry.Lookup(tool.VerifyCapabilityName); !ok {
		o.logger.Warn("orchestrator.verify_unavailable", "capability", tool.VerifyCapabilityName)
		return
	}
	var added []core.ToolCall
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.Risk < o.verifyFloor || step.Capability == tool.VerifyCapabilityName {
			continue
		}
		verify := core.ToolCall{
			ID:         util.NewID(),
			Capability: tool.VerifyCapabilityName,
			Domain:     "meta",
			Risk:       core.RiskReadOnly,
			Args: map[string]any{
				"capability": step.Capability,
				"args":       step.Args,
			},
			Critical: true,
		}
		step.DependsOn = append(step.DependsOn, verify.ID)
		added = append(added, verify)
	}
	plan.Steps = append(plan.Steps, added...)
}

// definitions converts the registry catalog into reasoner-facing definitions.
func (o *Orchestrator) definitions() []reason.CapabilityDefinition {
	caps := o.registry.List()
	out := make([]reason.CapabilityDefinition, 0, len(caps))
	for _, cap := range caps {
		out = append(out, reason.CapabilityDefinition{
			Name:        cap.Name(),
			Description: cap.Description(),
			Parameters:  cap.Parameters(),
			Risk:        cap.Risk().String(),
			Domain:      cap.Domain(),
		})
	}
	return out
}

// translate keeps ErrServiceUnavailable recognizable and wraps everything
// else with the failing operation.
func (o *Orchestrator) translate(err error, op string) error {
	if errors.Is(err, core.ErrServiceUnavailable) {
		return err
	}
	return fmt.Errorf("reasoning %s failed: %w", op, err)
}

// mentionsEntity reports whether any string argument contains the entity
// value (case-insensitive).
func mentionsEntity(args map[string]any, value string) bool {
	needle := strings.ToLower(value)
	for _, v := range args {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}
