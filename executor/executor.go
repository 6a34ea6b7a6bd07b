// Package executor runs ExecutionPlans in preview or commit mode. Steps
// execute in dependency order; independent branches run concurrently up to a
// configured in-flight cap. Preview runs substitute every capability's
// non-mutating preview operation, so a preview pass never produces an
// external side effect.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/logging"
	"github.com/hupe1980/intentmesh/tool"
)

// Options configure an Executor.
type Options struct {
	// MaxInFlight bounds concurrently executing steps within one plan run.
	MaxInFlight int
	// StepTimeout bounds each capability call, independent of session TTL.
	StepTimeout time.Duration
	// Logger receives per-run records.
	Logger logging.Logger
}

// Executor schedules ToolCalls against the capability registry. It also owns
// the commit gate: a plan id is only eligible for commit after an immediately
// preceding successful preview, and any plan containing mutating steps
// additionally needs an approval covering that exact plan id. Safe for
// concurrent use.
type Executor struct {
	registry    *tool.Registry
	maxInFlight int
	stepTimeout time.Duration
	logger      logging.Logger

	mu        sync.Mutex
	previewed map[string]bool
}

// New constructs an Executor with defaults suitable for interactive use.
func New(registry *tool.Registry, optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxInFlight: 4,
		StepTimeout: 30 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{
		registry:    registry,
		maxInFlight: opts.MaxInFlight,
		stepTimeout: opts.StepTimeout,
		logger:      opts.Logger,
		previewed:   make(map[string]bool),
	}
}

// Preview dry-runs the plan. A successful pass marks the plan id eligible for
// commit; a failed pass revokes eligibility.
func (e *Executor) Preview(ctx context.Context, plan *core.ExecutionPlan) (*core.ExecutionReport, error) {
	report, err := e.run(ctx, plan, core.ModePreview)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.previewed[plan.ID] = report.Succeeded()
	e.mu.Unlock()
	return report, nil
}

// Commit runs the plan for real. It refuses plans without a prior successful
// preview, and plans with mutating steps without an approval covering the
// same plan id. The eligibility mark is consumed: a second commit needs a
// fresh preview.
func (e *Executor) Commit(ctx context.Context, plan *core.ExecutionPlan, approval *core.Approval) (*core.ExecutionReport, error) {
	e.mu.Lock()
	ok := e.previewed[plan.ID]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", plan.ID, core.ErrPreviewRequired)
	}
	if plan.RequiresConfirmation() && !approval.Covers(plan) {
		return nil, fmt.Errorf("plan %s: %w", plan.ID, core.ErrConfirmationRequired)
	}

	report, err := e.run(ctx, plan, core.ModeCommit)

	e.mu.Lock()
	delete(e.previewed, plan.ID)
	e.mu.Unlock()

	return report, err
}

// stepOutcome pairs a settled step id with its result.
type stepOutcome struct {
	id  string
	res core.ToolResult
}

// run drives the dependency-ordered schedule. A single dispatcher goroutine
// owns all bookkeeping; workers only execute capabilities and report back, so
// no shared maps are touched concurrently.
func (e *Executor) run(ctx context.Context, plan *core.ExecutionPlan, mode core.Mode) (*core.ExecutionReport, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now().UTC()
	dependents := plan.Dependents()
	remaining := make(map[string]int, len(plan.Steps))
	for _, s := range plan.Steps {
		remaining[s.ID] = len(s.DependsOn)
	}

	doneCh := make(chan stepOutcome, len(plan.Steps))
	sem := make(chan struct{}, e.maxInFlight)
	settled := make(map[string]core.ToolResult, len(plan.Steps))
	scheduled := make(map[string]bool, len(plan.Steps))
	aborted := false

	launch := func(step core.ToolCall) {
		scheduled[step.ID] = true
		go func() {
			sem <- struct{}{}
			defer func() { <-sem }()
			doneCh <- stepOutcome{id: step.ID, res: e.execute(runCtx, step, mode)}
		}()
	}

	// poison settles every not-yet-scheduled transitive dependent of a failed
	// step with DependencyFailure, preserving partial results elsewhere.
	poison := func(failedID string) {
		stack := append([]string(nil), dependents[failedID]...)
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if scheduled[id] {
				continue
			}
			if _, done := settled[id]; done {
				continue
			}
			step, _ := plan.Step(id)
			depErr := &core.DependencyError{StepID: id, CauseID: failedID}
			settled[id] = core.ToolResult{
				CallID:     id,
				Capability: step.Capability,
				Status:     core.StatusDependencyFailure,
				Error:      depErr.Error(),
			}
			stack = append(stack, dependents[id]...)
		}
	}

	for _, s := range plan.Steps {
		if remaining[s.ID] == 0 {
			launch(s)
		}
	}

	for len(settled) < len(plan.Steps) {
		out := <-doneCh
		settled[out.id] = out.res

		if out.res.Status.Terminal() {
			poison(out.id)
			if step, ok := plan.Step(out.id); ok && step.Critical && !aborted {
				// A critical failure cancels the whole remaining run.
				aborted = true
				cancel()
				for _, s := range plan.Steps {
					if scheduled[s.ID] {
						continue
					}
					if _, done := settled[s.ID]; done {
						continue
					}
					settled[s.ID] = core.ToolResult{
						CallID:     s.ID,
						Capability: s.Capability,
						Status:     core.StatusAborted,
						Error:      fmt.Sprintf("aborted: critical step %s failed", out.id),
					}
				}
			}
			continue
		}

		for _, depID := range dependents[out.id] {
			remaining[depID]--
			if remaining[depID] == 0 && !scheduled[depID] {
				if _, done := settled[depID]; done {
					continue
				}
				step, _ := plan.Step(depID)
				launch(step)
			}
		}
	}

	report := &core.ExecutionReport{
		PlanID:   plan.ID,
		Mode:     mode,
		Started:  started,
		Finished: time.Now().UTC(),
		Results:  make([]core.ToolResult, 0, len(plan.Steps)),
	}
	for _, s := range plan.Steps {
		report.Results = append(report.Results, settled[s.ID])
	}

	e.logger.Info("executor.run.done",
		"plan_id", plan.ID,
		"mode", mode.String(),
		"steps", len(plan.Steps),
		"success", report.Succeeded(),
		"duration_ms", report.Finished.Sub(report.Started).Milliseconds(),
	)
	return report, nil
}

// execute runs one step with its own timeout and converts the capability
// outcome into a ToolResult.
func (e *Executor) execute(ctx context.Context, step core.ToolCall, mode core.Mode) core.ToolResult {
	start := time.Now()

	cap, ok := e.registry.Lookup(step.Capability)
	if !ok {
		return core.ToolResult{
			CallID:     step.ID,
			Capability: step.Capability,
			Status:     core.StatusFailure,
			Error:      fmt.Sprintf("unknown capability %q", step.Capability),
		}
	}
	if err := ctx.Err(); err != nil {
		return core.ToolResult{
			CallID:     step.ID,
			Capability: step.Capability,
			Status:     core.StatusFailure,
			Error:      "cancelled before start",
		}
	}

	stepCtx, cancelStep := context.WithTimeout(ctx, e.stepTimeout)
	defer cancelStep()

	var (
		res *core.CapabilityResult
		err error
	)
	if mode == core.ModePreview {
		res, err = cap.Preview(stepCtx, step.Args)
	} else {
		res, err = cap.Invoke(stepCtx, step.Args)
	}
	dur := time.Since(start)

	if err != nil {
		e.logger.Warn("executor.step.failed", "step", step.ID, "capability", step.Capability, "mode", mode.String(), "error", err.Error())
		return core.ToolResult{
			CallID:     step.ID,
			Capability: step.Capability,
			Status:     core.StatusFailure,
			Error:      err.Error(),
			Duration:   dur,
		}
	}

	status := core.StatusSuccess
	if len(res.Candidates) > 0 {
		// The capability could not pick a single referent; dependents must
		// wait for a human choice.
		status = core.StatusNeedsDisambiguation
	}
	return core.ToolResult{
		CallID:     step.ID,
		Capability: step.Capability,
		Status:     status,
		Payload:    res.Payload,
		Candidates: res.Candidates,
		References: res.References,
		Duration:   dur,
	}
}
