// Package confirm implements the state machine gating irreversible actions
// behind explicit user acceptance:
//
//	DRAFTED -> AWAITING_CONFIRMATION -> {CONFIRMED -> EXECUTING -> EXECUTED} | REJECTED | EXPIRED
//
// A proposal suspends its plan indefinitely (bounded by the session TTL)
// while awaiting a human decision, consuming no compute meanwhile. Decisions
// against stale or unknown proposal ids are no-ops surfaced as typed errors,
// never silently applied to a newer plan.
package confirm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/executor"
	"github.com/hupe1980/intentmesh/internal/util"
	"github.com/hupe1980/intentmesh/logging"
)

// Options configure a Workflow.
type Options struct {
	// TTL bounds how long a proposal awaits a decision. Align it with the
	// session TTL: an expired session can never confirm its proposals.
	TTL time.Duration
	// SweepInterval paces expiry of abandoned proposals. Zero disables the
	// loop; expiry is then detected lazily on Decide.
	SweepInterval time.Duration
	// Now overrides the clock (tests).
	Now func() time.Time
	// Logger receives transition records.
	Logger logging.Logger
}

// entry pairs a proposal with the plan it suspends.
type entry struct {
	proposal core.Proposal
	plan     *core.ExecutionPlan
}

// Workflow tracks pending proposals and drives their state transitions. Safe
// for concurrent use; the executor commit runs outside the lock so a slow
// plan never blocks unrelated decisions.
type Workflow struct {
	mu        sync.Mutex
	proposals map[string]*entry
	exec      *executor.Executor
	ttl       time.Duration
	now       func() time.Time
	logger    logging.Logger
	done      chan struct{}
	once      sync.Once
}

// New constructs a Workflow bound to an executor.
func New(exec *executor.Executor, optFns ...func(o *Options)) *Workflow {
	opts := Options{
		TTL:           30 * time.Minute,
		SweepInterval: time.Minute,
		Now:           time.Now,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	w := &Workflow{
		proposals: make(map[string]*entry),
		exec:      exec,
		ttl:       opts.TTL,
		now:       opts.Now,
		logger:    opts.Logger,
		done:      make(chan struct{}),
	}
	if opts.SweepInterval > 0 {
		go w.sweepLoop(opts.SweepInterval)
	}
	return w
}

// Close stops the sweep loop.
func (w *Workflow) Close() {
	w.once.Do(func() { close(w.done) })
}

// Propose drafts a proposal from a successful preview run and advances it to
// AWAITING_CONFIRMATION. The preview report must belong to the same plan id.
func (w *Workflow) Propose(plan *core.ExecutionPlan, preview *core.ExecutionReport) (*core.Proposal, error) {
	if preview == nil || preview.PlanID != plan.ID {
		return nil, fmt.Errorf("preview report does not match plan %s", plan.ID)
	}
	if preview.Mode != core.ModePreview {
		return nil, fmt.Errorf("proposal requires a preview report, got %s", preview.Mode)
	}
	if !preview.Succeeded() {
		return nil, fmt.Errorf("preview of plan %s did not succeed", plan.ID)
	}

	now := w.now().UTC()
	proposal := core.Proposal{
		ID:            util.NewID(),
		PlanID:        plan.ID,
		SessionID:     plan.SessionID,
		Summary:       renderSummary(plan, preview),
		RiskRationale: renderRiskRationale(plan),
		State:         core.StateDrafted,
		Created:       now,
		Expires:       now.Add(w.ttl),
	}
	proposal.State = core.StateAwaitingConfirmation

	w.mu.Lock()
	w.proposals[proposal.ID] = &entry{proposal: proposal, plan: plan}
	w.mu.Unlock()

	w.logger.Info("confirm.proposed", "proposal_id", proposal.ID, "plan_id", plan.ID, "session_id", plan.SessionID)
	out := proposal
	return &out, nil
}

// Decide applies a user decision. On accept it commits the plan through the
// executor and returns the commit report. On reject/modify the proposal
// reaches REJECTED and the returned proposal reflects that. Unknown, stale or
// expired ids return ErrUnknownProposal / ErrProposalExpired.
func (w *Workflow) Decide(ctx context.Context, proposalID, sessionID string, decision core.Decision) (*core.ExecutionReport, *core.Proposal, error) {
	w.mu.Lock()
	ent, ok := w.proposals[proposalID]
	if !ok {
		w.mu.Unlock()
		return nil, nil, core.ErrUnknownProposal
	}
	if ent.proposal.SessionID != sessionID {
		// A decision from another session is treated like a stale id, not an
		// authorization error, to avoid leaking proposal existence.
		w.mu.Unlock()
		return nil, nil, core.ErrUnknownProposal
	}
	if w.now().UTC().After(ent.proposal.Expires) {
		ent.proposal.State = core.StateExpired
		delete(w.proposals, proposalID)
		w.mu.Unlock()
		return nil, nil, core.ErrProposalExpired
	}
	if ent.proposal.State != core.StateAwaitingConfirmation {
		w.mu.Unlock()
		return nil, nil, core.ErrProposalDecided
	}

	if decision != core.DecisionAccept {
		ent.proposal.State = core.StateRejected
		out := ent.proposal
		delete(w.proposals, proposalID)
		w.mu.Unlock()
		w.logger.Info("confirm.rejected", "proposal_id", proposalID, "plan_id", out.PlanID)
		return nil, &out, nil
	}

	ent.proposal.State = core.StateConfirmed
	approval := &core.Approval{
		ProposalID: ent.proposal.ID,
		PlanID:     ent.proposal.PlanID,
		SessionID:  ent.proposal.SessionID,
		DecidedAt:  w.now().UTC(),
	}
	ent.proposal.State = core.StateExecuting
	plan := ent.plan
	w.mu.Unlock()

	report, err := w.exec.Commit(ctx, plan, approval)

	w.mu.Lock()
	ent.proposal.State = core.StateExecuted
	out := ent.proposal
	delete(w.proposals, proposalID)
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("confirm.commit_failed", "proposal_id", proposalID, "plan_id", plan.ID, "error", err.Error())
		return nil, &out, err
	}
	w.logger.Info("confirm.executed", "proposal_id", proposalID, "plan_id", plan.ID)
	return report, &out, nil
}

// Get returns a snapshot of a pending proposal.
func (w *Workflow) Get(proposalID string) (*core.Proposal, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ent, ok := w.proposals[proposalID]
	if !ok {
		return nil, false
	}
	out := ent.proposal
	return &out, true
}

// sweepLoop expires abandoned proposals so their plan state is released.
func (w *Workflow) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Workflow) sweep() {
	now := w.now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ent := range w.proposals {
		if now.After(ent.proposal.Expires) {
			ent.proposal.State = core.StateExpired
			delete(w.proposals, id)
			w.logger.Info("confirm.expired", "proposal_id", id, "plan_id", ent.proposal.PlanID)
		}
	}
}

// renderSummary produces the human-readable preview shown to the user before
// they decide.
func renderSummary(plan *core.ExecutionPlan, preview *core.ExecutionReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Planned actions (%d steps):\n", len(plan.Steps))
	for i, step := range plan.Steps {
		fmt.Fprintf(&sb, "%d. %s [%s]", i+1, step.Capability, step.Risk)
		if res, ok := preview.Result(step.ID); ok && res.Payload != nil {
			fmt.Fprintf(&sb, ": %v", res.Payload)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderRiskRationale explains why the plan needs (or skips) confirmation.
func renderRiskRationale(plan *core.ExecutionPlan) string {
	mutating := 0
	for _, step := range plan.Steps {
		if step.Risk.Mutating() {
			mutating++
		}
	}
	if mutating == 0 {
		return "All steps are read-only; no external state changes."
	}
	return fmt.Sprintf("%d of %d steps modify external state (highest risk: %s); explicit confirmation is required before commit.",
		mutating, len(plan.Steps), plan.MaxRisk())
}
