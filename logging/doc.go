// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer IntentMeshLogger with contextual
// helpers (session, plan, component) and domain specific logging helpers for
// capabilities, the reasoning gateway and plan runs.
package logging
