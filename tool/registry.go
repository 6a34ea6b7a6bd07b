package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/internal/util"
)

// Registry is the catalog of registered capabilities. The orchestrator reads
// it to expose capability definitions to the reasoner, to validate step
// arguments at plan-build time and to find lookup-style resolvers for
// ambiguous referents. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	caps      map[string]core.Capability
	resolvers map[string]string // entity kind -> capability name
}

// NewRegistry constructs an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		caps:      make(map[string]core.Capability),
		resolvers: make(map[string]string),
	}
}

// Register adds a capability to the catalog. Names must be unique.
func (r *Registry) Register(cap core.Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cap.Name() == "" {
		return fmt.Errorf("capability has no name")
	}
	if _, exists := r.caps[cap.Name()]; exists {
		return fmt.Errorf("capability %q already registered", cap.Name())
	}
	r.caps[cap.Name()] = cap
	return nil
}

// RegisterResolver marks a read-only capability as the disambiguation lookup
// for an entity kind ("contact", "email-thread", ...). The orchestrator
// inserts it as a dependency of any mutating step whose referent is
// ambiguous.
func (r *Registry) RegisterResolver(kind, capabilityName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cap, ok := r.caps[capabilityName]
	if !ok {
		return fmt.Errorf("capability %q not registered", capabilityName)
	}
	if cap.Risk() != core.RiskReadOnly {
		return fmt.Errorf("resolver %q must be read-only, got %s", capabilityName, cap.Risk())
	}
	r.resolvers[kind] = capabilityName
	return nil
}

// Lookup returns the capability with the given name.
func (r *Registry) Lookup(name string) (core.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cap, ok := r.caps[name]
	return cap, ok
}

// ResolverFor returns the disambiguation capability registered for an entity
// kind.
func (r *Registry) ResolverFor(kind string) (core.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.resolvers[kind]
	if !ok {
		return nil, false
	}
	cap, ok := r.caps[name]
	return cap, ok
}

// List returns all registered capabilities sorted by name.
func (r *Registry) List() []core.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Capability, 0, len(r.caps))
	for _, cap := range r.caps {
		out = append(out, cap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ValidateArgs checks a step's arguments against the capability's declared
// parameter schema. Run by the orchestrator at plan-build time so malformed
// steps never reach the executor.
func (r *Registry) ValidateArgs(capabilityName string, args map[string]any) error {
	cap, ok := r.Lookup(capabilityName)
	if !ok {
		return &core.ValidationError{
			Field:   "capability",
			Value:   capabilityName,
			Message: "unknown capability",
		}
	}
	if args == nil {
		args = map[string]any{}
	}
	return util.ValidateParameters(args, cap.Parameters())
}
