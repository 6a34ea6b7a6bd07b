package core

import "fmt"

// Risk classifies how dangerous committing a capability is. It is declared by
// the capability at registration time and copied onto every ToolCall the
// planner produces, so gating decisions never depend on re-querying the
// registry at execution time.
type Risk int

const (
	// RiskReadOnly marks capabilities with no external side effect.
	RiskReadOnly Risk = iota
	// RiskLow marks reversible mutations (e.g. saving a draft).
	RiskLow
	// RiskMedium marks mutations that are awkward but possible to undo.
	RiskMedium
	// RiskHigh marks irreversible external effects (e.g. sending an email).
	RiskHigh
)

// String returns the canonical lower-case label used in schemas and logs.
func (r Risk) String() string {
	switch r {
	case RiskReadOnly:
		return "read-only"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Mutating reports whether committing this risk level produces an external
// side effect.
func (r Risk) Mutating() bool { return r != RiskReadOnly }

// RequiresConfirmation reports whether a step at this level forces the plan
// through the confirmation workflow. Every mutating level requires it; plans
// made up entirely of read-only steps skip confirmation.
func (r Risk) RequiresConfirmation() bool { return r.Mutating() }

// ParseRisk converts a canonical label back into a Risk.
func ParseRisk(s string) (Risk, error) {
	switch s {
	case "read-only", "readonly":
		return RiskReadOnly, nil
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	default:
		return RiskReadOnly, fmt.Errorf("unknown risk classification %q", s)
	}
}
