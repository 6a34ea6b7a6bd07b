package core

import (
	"errors"
	"fmt"
)

// Sentinel errors crossing component boundaries. Callers match them with
// errors.Is after any amount of %w wrapping.
var (
	// ErrSessionNotFound indicates the session id is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrReferenceNotFound indicates the named reference slot is empty.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrServiceUnavailable indicates the reasoning dependency is unreachable
	// (circuit open). It is deliberately distinct from a genuine reasoning
	// failure so callers can answer honestly instead of retrying blindly.
	ErrServiceUnavailable = errors.New("reasoning service unavailable")

	// ErrUnknownProposal indicates a decision referenced a proposal id that
	// does not exist (stale, replayed, or fabricated).
	ErrUnknownProposal = errors.New("unknown proposal")

	// ErrProposalExpired indicates the proposal outlived the session TTL
	// before a decision arrived.
	ErrProposalExpired = errors.New("proposal expired")

	// ErrProposalDecided indicates the proposal already reached a terminal
	// state and cannot be decided again.
	ErrProposalDecided = errors.New("proposal already decided")

	// ErrPreviewRequired indicates a commit was attempted for a plan id with
	// no immediately preceding successful preview pass.
	ErrPreviewRequired = errors.New("commit requires a prior successful preview")

	// ErrConfirmationRequired indicates a commit of a plan containing
	// mutating steps was attempted without a matching approval.
	ErrConfirmationRequired = errors.New("commit requires a confirmed approval")
)

// ValidationError reports malformed input rejected before planning. It never
// reaches the executor.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// AmbiguityError reports an entity resolving to multiple referents. It is not
// a terminal failure: the orchestrator answers it by inserting an explicit
// disambiguation step rather than guessing.
type AmbiguityError struct {
	Entity     string      `json:"entity"`
	Candidates []Reference `json:"candidates"`
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("entity %q is ambiguous (%d candidates)", e.Entity, len(e.Candidates))
}

// DependencyError reports a step skipped because a prerequisite failed.
type DependencyError struct {
	StepID  string `json:"step_id"`
	CauseID string `json:"cause_id"`
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s not executed: dependency %s failed", e.StepID, e.CauseID)
}
