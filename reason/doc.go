// Package reason defines the interface to the external natural-language
// reasoning dependency: intent/entity classification and plan synthesis. It
// normalizes provider output into Classification and DraftPlan structures so
// the orchestrator never branches per vendor. Concrete adapters live in the
// openai and anthropic sub-packages; MockReasoner serves tests and demos.
//
// The reasoner is the only path for intent resolution. There is deliberately
// no lexical/keyword fallback: when the dependency is down, callers surface
// core.ErrServiceUnavailable instead of degrading to guesswork.
package reason
