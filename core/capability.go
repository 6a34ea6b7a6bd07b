package core

import "context"

// Capability is the uniform contract for one pluggable domain action (send an
// email, look up a contact, create a calendar event). The core never calls a
// provider-specific wire protocol directly; domain adapters implement this
// interface and register with the tool registry.
//
// Implementations must:
//   - Keep Preview free of external side effects; it is the operation the
//     executor substitutes for Invoke during a preview run
//   - Respect context cancellation; each call carries its own timeout
//   - Be safe for concurrent use; independent plan branches run in parallel
//   - Return Candidates (instead of guessing) when a referent is ambiguous
type Capability interface {
	// Name returns the unique capability identifier (snake_case).
	Name() string

	// Description is the natural-language summary handed to the reasoner so
	// plan synthesis knows when the capability applies.
	Description() string

	// Parameters returns a JSON-Schema-like map describing accepted
	// arguments. Arguments are validated against it at plan-build time.
	Parameters() map[string]any

	// Risk returns the a priori risk classification of committing this
	// capability.
	Risk() Risk

	// Domain names the capability's target domain ("email", "calendar",
	// "contacts", "messaging").
	Domain() string

	// Preview dry-runs the capability with no external side effect.
	Preview(ctx context.Context, args map[string]any) (*CapabilityResult, error)

	// Invoke performs the capability for real.
	Invoke(ctx context.Context, args map[string]any) (*CapabilityResult, error)
}
