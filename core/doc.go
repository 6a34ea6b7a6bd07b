// Package core provides the foundational domain types and interfaces used by
// IntentMesh. It defines the core abstractions for:
//
//   - Sessions (bounded, time-limited conversational context)
//   - ExecutionPlans (ordered, dependency-annotated tool call sequences)
//   - Capabilities (pluggable domain actions with preview/invoke contracts)
//   - Proposals (risk-gated previews awaiting a confirm/reject decision)
//   - The shared error taxonomy crossing component boundaries
//
// The package intentionally keeps implementation concerns (stores, the
// executor, the reasoning gateway) out of scope, exposing small interfaces so
// sibling packages can provide backends without import cycles.
package core
