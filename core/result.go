package core

import "time"

// Mode selects whether a plan run may produce external side effects.
type Mode int

const (
	// ModePreview runs every step through its non-mutating preview operation.
	ModePreview Mode = iota
	// ModeCommit runs mutating steps for real. Only reachable after a
	// successful preview of the same plan id.
	ModeCommit
)

// String returns the mode label used in reports and logs.
func (m Mode) String() string {
	if m == ModeCommit {
		return "commit"
	}
	return "preview"
}

// Status classifies the outcome of one ToolCall execution.
type Status int

const (
	// StatusSuccess means the capability completed.
	StatusSuccess Status = iota
	// StatusFailure means the capability itself failed.
	StatusFailure
	// StatusNeedsDisambiguation means the capability found multiple referents
	// and a human choice is required before any dependent may run.
	StatusNeedsDisambiguation
	// StatusDependencyFailure means a prerequisite step failed; this step was
	// never started.
	StatusDependencyFailure
	// StatusAborted means a critical step failed elsewhere in the plan and
	// this step was cancelled before starting.
	StatusAborted
)

// String returns the status label used in reports and logs.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusNeedsDisambiguation:
		return "needs-disambiguation"
	case StatusDependencyFailure:
		return "dependency-failure"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status blocks dependents from running.
func (s Status) Terminal() bool { return s != StatusSuccess }

// CapabilityResult is what a capability returns from Preview or Invoke.
// Candidates is populated when the capability cannot pick a single referent;
// References carries named entity references the caller stores into session
// reference slots after a committed run.
type CapabilityResult struct {
	Payload    any                  `json:"payload,omitempty"`
	Candidates []Reference          `json:"candidates,omitempty"`
	References map[string]Reference `json:"references,omitempty"`
}

// ToolResult records the outcome of one ToolCall, attached to the plan's step
// inside the ExecutionReport.
type ToolResult struct {
	CallID     string               `json:"call_id"`
	Capability string               `json:"capability"`
	Status     Status               `json:"status"`
	Payload    any                  `json:"payload,omitempty"`
	Candidates []Reference          `json:"candidates,omitempty"`
	References map[string]Reference `json:"references,omitempty"`
	Error      string               `json:"error,omitempty"`
	Duration   time.Duration        `json:"duration"`
}

// ExecutionReport aggregates per-step results for one run of a plan. Results
// follow plan step order so previews render deterministically.
type ExecutionReport struct {
	PlanID   string       `json:"plan_id"`
	Mode     Mode         `json:"mode"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Results  []ToolResult `json:"results"`
}

// Result returns the ToolResult for a step id.
func (r *ExecutionReport) Result(callID string) (ToolResult, bool) {
	for _, res := range r.Results {
		if res.CallID == callID {
			return res, true
		}
	}
	return ToolResult{}, false
}

// Succeeded reports whether every step completed successfully.
func (r *ExecutionReport) Succeeded() bool {
	for _, res := range r.Results {
		if res.Status != StatusSuccess {
			return false
		}
	}
	return len(r.Results) > 0
}

// Failures returns the results that did not succeed, preserving order.
func (r *ExecutionReport) Failures() []ToolResult {
	var out []ToolResult
	for _, res := range r.Results {
		if res.Status != StatusSuccess {
			out = append(out, res)
		}
	}
	return out
}
