package core

import (
	"fmt"
	"time"
)

// ProposalState tracks a proposal through the confirmation workflow.
type ProposalState int

const (
	// StateDrafted results from a successful preview run.
	StateDrafted ProposalState = iota
	// StateAwaitingConfirmation means the plan contains at least one step
	// whose risk requires an explicit decision.
	StateAwaitingConfirmation
	// StateConfirmed means an accept decision arrived for this exact
	// proposal and session.
	StateConfirmed
	// StateExecuting means the commit run is in flight.
	StateExecuting
	// StateExecuted is terminal: the commit run finished.
	StateExecuted
	// StateRejected is terminal: the user declined (or asked to modify).
	StateRejected
	// StateExpired is terminal: no decision arrived before the session TTL.
	StateExpired
)

// String returns the state label used in logs and responses.
func (s ProposalState) String() string {
	switch s {
	case StateDrafted:
		return "DRAFTED"
	case StateAwaitingConfirmation:
		return "AWAITING_CONFIRMATION"
	case StateConfirmed:
		return "CONFIRMED"
	case StateExecuting:
		return "EXECUTING"
	case StateExecuted:
		return "EXECUTED"
	case StateRejected:
		return "REJECTED"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s ProposalState) Terminal() bool {
	return s == StateExecuted || s == StateRejected || s == StateExpired
}

// Decision is the user's answer to a proposal.
type Decision int

const (
	// DecisionAccept confirms the plan for commit.
	DecisionAccept Decision = iota
	// DecisionReject discards the plan.
	DecisionReject
	// DecisionModify discards the plan and asks for a restated utterance.
	DecisionModify
)

// ParseDecision converts the wire label into a Decision.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "accept":
		return DecisionAccept, nil
	case "reject":
		return DecisionReject, nil
	case "modify":
		return DecisionModify, nil
	default:
		return DecisionReject, fmt.Errorf("unknown decision %q", s)
	}
}

// Proposal is the human-readable, risk-annotated preview of one plan awaiting
// a confirm/reject decision. Its id is distinct from the session id so a
// stale confirmation cannot be replayed against a newer plan.
type Proposal struct {
	ID            string        `json:"id"`
	PlanID        string        `json:"plan_id"`
	SessionID     string        `json:"session_id"`
	Summary       string        `json:"summary"`
	RiskRationale string        `json:"risk_rationale"`
	State         ProposalState `json:"state"`
	Created       time.Time     `json:"created"`
	Expires       time.Time     `json:"expires"`
}

// Approval is the token proving a CONFIRMED decision exists for a plan. The
// executor demands one before committing any plan with mutating steps, so the
// high-risk invariant holds even for callers that bypass the workflow.
type Approval struct {
	ProposalID string    `json:"proposal_id"`
	PlanID     string    `json:"plan_id"`
	SessionID  string    `json:"session_id"`
	DecidedAt  time.Time `json:"decided_at"`
}

// Covers reports whether the approval authorizes committing the given plan.
func (a *Approval) Covers(plan *ExecutionPlan) bool {
	return a != nil && a.PlanID == plan.ID
}
