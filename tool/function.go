package tool

import (
	"context"
	"time"

	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/logging"
)

// CapabilityFunc is the signature of a preview or invoke implementation.
type CapabilityFunc func(ctx context.Context, args map[string]any) (*core.CapabilityResult, error)

// FunctionCapability is a generic adapter that exposes a pair of plain Go
// functions (preview + invoke) as an IntentMesh capability.
//
// Responsibilities:
//   - Holds a lightweight JSON-Schema-like parameter specification; the
//     orchestrator validates plan arguments against it at plan-build time
//   - Carries the a priori risk classification and target domain
//   - Normalizes error handling so callers receive *CapabilityError with
//     consistent codes (EXECUTION_ERROR unless the function returned a
//     *CapabilityError directly)
//
// Concurrency: a FunctionCapability has no internal mutable state after
// construction and is safe for concurrent use by multiple goroutines.
//
// Read-only capabilities may omit the invoke function; Invoke then falls back
// to the preview function, since the two are equivalent without side effects.
type FunctionCapability struct {
	name        string
	description string
	domain      string
	risk        core.Risk
	parameters  map[string]any
	previewFn   CapabilityFunc
	invokeFn    CapabilityFunc
	logger      logging.Logger
}

// FunctionOption mutates optional FunctionCapability settings.
type FunctionOption func(*FunctionCapability)

// WithLogger attaches a logger used for per-call debug records.
func WithLogger(l logging.Logger) FunctionOption {
	return func(f *FunctionCapability) { f.logger = l }
}

// NewFunctionCapability constructs a capability from explicit schema and
// functions.
//
// Arguments:
//
//	name        - unique capability name (snake_case suggested)
//	description - concise, imperative description handed to the reasoner
//	domain      - target domain ("email", "calendar", "contacts", ...)
//	risk        - a priori risk classification of committing the capability
//	parameters  - minimal JSON-Schema-like map describing accepted arguments
//	previewFn   - side-effect-free dry run implementation
//	invokeFn    - committing implementation (nil for read-only capabilities)
func NewFunctionCapability(
	name, description, domain string,
	risk core.Risk,
	parameters map[string]any,
	previewFn, invokeFn CapabilityFunc,
	optFns ...FunctionOption,
) *FunctionCapability {
	f := &FunctionCapability{
		name:        name,
		description: description,
		domain:      domain,
		risk:        risk,
		parameters:  parameters,
		previewFn:   previewFn,
		invokeFn:    invokeFn,
		logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(f)
	}
	return f
}

// Name returns the unique capability name used in plans and routing.
func (f *FunctionCapability) Name() string { return f.name }

// Description returns the natural language description exposed to the reasoner.
func (f *FunctionCapability) Description() string { return f.description }

// Parameters returns the (minimal) JSON schema describing expected arguments.
func (f *FunctionCapability) Parameters() map[string]any { return f.parameters }

// Risk returns the a priori risk classification.
func (f *FunctionCapability) Risk() core.Risk { return f.risk }

// Domain returns the capability's target domain.
func (f *FunctionCapability) Domain() string { return f.domain }

// Preview dry-runs the capability. The executor substitutes this for Invoke
// during a preview pass, so implementations must not produce side effects.
func (f *FunctionCapability) Preview(ctx context.Context, args map[string]any) (*core.CapabilityResult, error) {
	return f.call(ctx, "preview", f.previewFn, args)
}

// Invoke performs the capability for real. Read-only capabilities without an
// invoke function fall back to the preview implementation.
func (f *FunctionCapability) Invoke(ctx context.Context, args map[string]any) (*core.CapabilityResult, error) {
	fn := f.invokeFn
	if fn == nil {
		fn = f.previewFn
	}
	return f.call(ctx, "invoke", fn, args)
}

// call runs fn and wraps non-CapabilityError failures for uniform downstream
// handling.
func (f *FunctionCapability) call(ctx context.Context, op string, fn CapabilityFunc, args map[string]any) (*core.CapabilityResult, error) {
	start := time.Now()
	f.logger.Debug("capability.call.start", "capability", f.name, "op", op)

	result, err := fn(ctx, args)
	if err != nil {
		if capErr, ok := err.(*CapabilityError); ok {
			f.logger.Error("capability.call.error", "capability", f.name, "op", op, "error", capErr.Message)
			return nil, capErr
		}
		f.logger.Error("capability.call.error", "capability", f.name, "op", op, "error", err.Error())
		return nil, &CapabilityError{
			Capability: f.name,
			Message:    err.Error(),
			Code:       "EXECUTION_ERROR",
		}
	}
	if result == nil {
		result = &core.CapabilityResult{}
	}

	f.logger.Info("capability.call.success", "capability", f.name, "op", op, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
