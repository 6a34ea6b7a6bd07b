// Package intentmesh provides a high-level façade over the intent-to-action
// control loop: session context, planning, preview, risk-gated confirmation
// and commit. Most applications interact with this package by:
//  1. Creating an IntentMesh via New() with a reason.Reasoner (optionally
//     overriding default in-memory services)
//  2. Registering domain capabilities (email, calendar, contacts, ...)
//  3. Handling turns (HandleTurn) and confirmation decisions (Decide)
//
// All defaults are safe for local development and testing; production
// deployments typically supply the redis session store and a structured
// logger.
package intentmesh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/intentmesh/confirm"
	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/executor"
	"github.com/hupe1980/intentmesh/gateway"
	"github.com/hupe1980/intentmesh/logging"
	"github.com/hupe1980/intentmesh/orchestrator"
	"github.com/hupe1980/intentmesh/reason"
	"github.com/hupe1980/intentmesh/session"
	"github.com/hupe1980/intentmesh/tool"
)

// unavailableText is the fixed, honest answer when the reasoning dependency
// is down. There is deliberately no keyword-matching fallback behind it.
const unavailableText = "The assistant is temporarily unavailable. Please try again shortly."

// Options configures the IntentMesh instance.
type Options struct {
	// SessionStore holds conversational context (defaults to in-memory).
	SessionStore core.SessionStore
	// Registry catalogs domain capabilities (defaults to a fresh registry).
	Registry *tool.Registry
	// SessionTTL is the inactivity window for sessions and proposals.
	SessionTTL time.Duration
	// SessionMaxTurns caps the per-session turn history.
	SessionMaxTurns int
	// MaxInFlight bounds concurrent steps within one plan run.
	MaxInFlight int
	// StepTimeout bounds each capability call.
	StepTimeout time.Duration
	// FailureThreshold, SuccessThreshold, RecoveryTimeout and CallTimeout
	// parameterize the reasoning gateway's circuit breaker.
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
	CallTimeout      time.Duration
	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// TurnRequest is the inbound command for one user turn. Either SessionID (to
// continue a conversation) or Identity (to start one lazily) must be set.
type TurnRequest struct {
	Utterance       string            `json:"utterance"`
	SessionID       string            `json:"session_id,omitempty"`
	Identity        string            `json:"identity,omitempty"`
	ChannelMetadata map[string]string `json:"channel_metadata,omitempty"`
}

// TurnResponse is the outcome of one turn: an acknowledgement plus, depending
// on the plan's risk, a proposal awaiting confirmation or a finished report.
type TurnResponse struct {
	SessionID       string                `json:"session_id"`
	Acknowledgement string                `json:"acknowledgement"`
	Proposal        *core.Proposal        `json:"proposal,omitempty"`
	Report          *core.ExecutionReport `json:"report,omitempty"`
}

// DecideRequest is the inbound confirmation command.
type DecideRequest struct {
	SessionID  string `json:"session_id"`
	ProposalID string `json:"proposal_id"`
	Decision   string `json:"decision"` // accept | reject | modify
}

// DecideResponse reports what happened to the proposal.
type DecideResponse struct {
	SessionID       string                `json:"session_id"`
	Outcome         string                `json:"outcome"` // executed | rejected | expired | stale
	Acknowledgement string                `json:"acknowledgement"`
	Report          *core.ExecutionReport `json:"report,omitempty"`
}

// IntentMesh is the high-level façade aggregating the control loop.
type IntentMesh struct {
	sessions     core.SessionStore
	registry     *tool.Registry
	gateway      *gateway.Gateway
	orchestrator *orchestrator.Orchestrator
	executor     *executor.Executor
	workflow     *confirm.Workflow
	logger       logging.Logger
	maxTurns     int
	closers      []func()
}

// New creates an IntentMesh around a reasoner. Any unset service defaults to
// an in-memory implementation.
func New(reasoner reason.Reasoner, optFns ...func(o *Options)) (*IntentMesh, error) {
	opts := Options{
		SessionTTL:       30 * time.Minute,
		SessionMaxTurns:  20,
		MaxInFlight:      4,
		StepTimeout:      30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTimeout:  30 * time.Second,
		CallTimeout:      15 * time.Second,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	m := &IntentMesh{
		logger:   opts.Logger,
		maxTurns: opts.SessionMaxTurns,
	}

	m.registry = opts.Registry
	if m.registry == nil {
		m.registry = tool.NewRegistry()
	}
	if _, ok := m.registry.Lookup(tool.VerifyCapabilityName); !ok {
		if err := m.registry.Register(tool.NewVerificationCapability(m.registry)); err != nil {
			return nil, fmt.Errorf("register verification capability: %w", err)
		}
	}

	m.sessions = opts.SessionStore
	if m.sessions == nil {
		store := session.NewInMemoryStore(func(o *session.Options) {
			o.TTL = opts.SessionTTL
			o.MaxTurns = opts.SessionMaxTurns
			o.Logger = opts.Logger
		})
		m.sessions = store
		m.closers = append(m.closers, store.Close)
	}

	m.gateway = gateway.New(reasoner, func(o *gateway.Options) {
		o.FailureThreshold = opts.FailureThreshold
		o.SuccessThreshold = opts.SuccessThreshold
		o.RecoveryTimeout = opts.RecoveryTimeout
		o.CallTimeout = opts.CallTimeout
		o.Logger = opts.Logger
	})

	m.orchestrator = orchestrator.New(m.gateway, m.registry, func(o *orchestrator.Options) {
		o.Logger = opts.Logger
	})

	m.executor = executor.New(m.registry, func(o *executor.Options) {
		o.MaxInFlight = opts.MaxInFlight
		o.StepTimeout = opts.StepTimeout
		o.Logger = opts.Logger
	})

	m.workflow = confirm.New(m.executor, func(o *confirm.Options) {
		o.TTL = opts.SessionTTL
		o.Logger = opts.Logger
	})
	m.closers = append(m.closers, m.workflow.Close)

	return m, nil
}

// Close releases background loops owned by the façade.
func (m *IntentMesh) Close() {
	for _, fn := range m.closers {
		fn()
	}
}

// RegisterCapability adds a domain capability to the catalog.
func (m *IntentMesh) RegisterCapability(cap core.Capability) error {
	return m.registry.Register(cap)
}

// RegisterResolver marks a read-only capability as the disambiguation lookup
// for an entity kind.
func (m *IntentMesh) RegisterResolver(kind, capabilityName string) error {
	return m.registry.RegisterResolver(kind, capabilityName)
}

// GatewayState exposes the circuit position for health reporting.
func (m *IntentMesh) GatewayState() string { return m.gateway.State() }

// HandleTurn drives one user turn through the control loop: load/create the
// session, plan, preview, and either propose (plans needing confirmation) or
// commit directly (read-only plans).
func (m *IntentMesh) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	sess, resp, err := m.resolveSession(ctx, req)
	if resp != nil || err != nil {
		return resp, err
	}

	if err := m.sessions.Touch(ctx, sess.ID); err != nil && !errors.Is(err, core.ErrSessionNotFound) {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if err := m.sessions.RecordTurn(ctx, sess.ID, core.Turn{Role: "user", Text: req.Utterance, At: time.Now().UTC()}); err != nil {
		return nil, fmt.Errorf("record turn: %w", err)
	}

	plan, clarification, err := m.orchestrator.Plan(ctx, req.Utterance, sess)
	if err != nil {
		return m.planError(ctx, sess, err)
	}
	if clarification != nil {
		return m.respond(ctx, sess, &TurnResponse{SessionID: sess.ID, Acknowledgement: clarification.Question})
	}

	preview, err := m.executor.Preview(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("preview plan %s: %w", plan.ID, err)
	}
	if !preview.Succeeded() {
		return m.respond(ctx, sess, &TurnResponse{
			SessionID:       sess.ID,
			Acknowledgement: "I couldn't safely prepare that request. Some steps did not pass the dry run.",
			Report:          preview,
		})
	}

	if plan.RequiresConfirmation() {
		proposal, err := m.workflow.Propose(plan, preview)
		if err != nil {
			return nil, fmt.Errorf("propose plan %s: %w", plan.ID, err)
		}
		return m.respond(ctx, sess, &TurnResponse{
			SessionID:       sess.ID,
			Acknowledgement: proposal.Summary + "\n" + proposal.RiskRationale + "\nReply accept or reject.",
			Proposal:        proposal,
			Report:          preview,
		})
	}

	// Read-only plans skip confirmation and proceed straight to commit.
	report, err := m.executor.Commit(ctx, plan, nil)
	if err != nil {
		return nil, fmt.Errorf("commit plan %s: %w", plan.ID, err)
	}
	m.applyReferences(ctx, sess.ID, report)
	return m.respond(ctx, sess, &TurnResponse{
		SessionID:       sess.ID,
		Acknowledgement: "Done.",
		Report:          report,
	})
}

// Decide applies a confirmation decision to a pending proposal.
func (m *IntentMesh) Decide(ctx context.Context, req DecideRequest) (*DecideResponse, error) {
	decision, err := core.ParseDecision(req.Decision)
	if err != nil {
		return nil, &core.ValidationError{Field: "decision", Value: req.Decision, Message: err.Error()}
	}

	report, _, err := m.workflow.Decide(ctx, req.ProposalID, req.SessionID, decision)
	switch {
	case errors.Is(err, core.ErrUnknownProposal), errors.Is(err, core.ErrProposalDecided):
		// A stale decision is a no-op clarification, never applied elsewhere.
		return &DecideResponse{
			SessionID:       req.SessionID,
			Outcome:         "stale",
			Acknowledgement: "That confirmation no longer matches a pending request. Please restate what you'd like to do.",
		}, nil
	case errors.Is(err, core.ErrProposalExpired):
		return &DecideResponse{
			SessionID:       req.SessionID,
			Outcome:         "expired",
			Acknowledgement: "That request expired before it was confirmed. Please restate it.",
		}, nil
	case err != nil:
		return nil, err
	}

	if decision != core.DecisionAccept {
		ack := "Understood, I won't do that."
		if decision == core.DecisionModify {
			ack = "Understood. Tell me what to change and I'll plan it again."
		}
		m.recordAssistantTurn(ctx, req.SessionID, ack)
		return &DecideResponse{SessionID: req.SessionID, Outcome: "rejected", Acknowledgement: ack}, nil
	}

	m.applyReferences(ctx, req.SessionID, report)
	ack := "Done."
	if !report.Succeeded() {
		ack = "Partially done. Some steps could not be completed."
	}
	m.recordAssistantTurn(ctx, req.SessionID, ack)
	return &DecideResponse{SessionID: req.SessionID, Outcome: "executed", Acknowledgement: ack, Report: report}, nil
}

// resolveSession loads the referenced session or lazily creates one from the
// identity. An expired session with no identity to fall back on yields a
// restate response instead of an error.
func (m *IntentMesh) resolveSession(ctx context.Context, req TurnRequest) (*core.Session, *TurnResponse, error) {
	if req.SessionID != "" {
		sess, err := m.sessions.Get(ctx, req.SessionID)
		if err == nil {
			return sess, nil, nil
		}
		if !errors.Is(err, core.ErrSessionNotFound) {
			return nil, nil, fmt.Errorf("load session: %w", err)
		}
		if req.Identity == "" {
			return nil, &TurnResponse{
				SessionID:       req.SessionID,
				Acknowledgement: "Your session expired. Please restate your request.",
			}, nil
		}
	}
	if req.Identity == "" {
		return nil, nil, &core.ValidationError{Field: "identity", Message: "either session_id or identity is required"}
	}
	sess, err := m.sessions.Create(ctx, req.Identity)
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil, nil
}

// planError translates planning failures into user-safe acknowledgements.
// Raw provider errors never surface.
func (m *IntentMesh) planError(ctx context.Context, sess *core.Session, err error) (*TurnResponse, error) {
	var vErr *core.ValidationError
	switch {
	case errors.Is(err, core.ErrServiceUnavailable):
		return m.respond(ctx, sess, &TurnResponse{SessionID: sess.ID, Acknowledgement: unavailableText})
	case errors.As(err, &vErr):
		return m.respond(ctx, sess, &TurnResponse{
			SessionID:       sess.ID,
			Acknowledgement: fmt.Sprintf("I couldn't process that: %s.", vErr.Message),
		})
	default:
		m.logger.Error("turn.plan_failed", "session_id", sess.ID, "error", err.Error())
		return m.respond(ctx, sess, &TurnResponse{
			SessionID:       sess.ID,
			Acknowledgement: "Something went wrong while planning that request. Please try again.",
		})
	}
}

// respond records the assistant turn and returns the response.
func (m *IntentMesh) respond(ctx context.Context, sess *core.Session, resp *TurnResponse) (*TurnResponse, error) {
	m.recordAssistantTurn(ctx, sess.ID, resp.Acknowledgement)
	return resp, nil
}

func (m *IntentMesh) recordAssistantTurn(ctx context.Context, sessionID, text string) {
	err := m.sessions.RecordTurn(ctx, sessionID, core.Turn{Role: "assistant", Text: text, At: time.Now().UTC()})
	if err != nil && !errors.Is(err, core.ErrSessionNotFound) {
		m.logger.Warn("turn.record_failed", "session_id", sessionID, "error", err.Error())
	}
}

// applyReferences writes named references from a committed run into session
// reference slots, overwriting previous values.
func (m *IntentMesh) applyReferences(ctx context.Context, sessionID string, report *core.ExecutionReport) {
	if report == nil {
		return
	}
	for _, res := range report.Results {
		for key, ref := range res.References {
			if err := m.sessions.SetReference(ctx, sessionID, key, ref); err != nil && !errors.Is(err, core.ErrSessionNotFound) {
				m.logger.Warn("turn.reference_failed", "session_id", sessionID, "key", key, "error", err.Error())
			}
		}
	}
}
