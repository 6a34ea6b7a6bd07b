package core

import (
	"fmt"
	"time"
)

// ToolCall is one step of an ExecutionPlan: a named capability plus its typed
// argument payload, risk classification and dependency edges. ToolCalls are
// immutable once the orchestrator produced them; the executor only reads.
type ToolCall struct {
	ID         string         `json:"id"`
	Capability string         `json:"capability"`
	Domain     string         `json:"domain"`
	Risk       Risk           `json:"risk"`
	Args       map[string]any `json:"args,omitempty"`
	// DependsOn lists step ids whose results must be known (and successful)
	// before this step may start.
	DependsOn []string `json:"depends_on,omitempty"`
	// Critical marks steps whose failure cancels the whole remaining run
	// instead of only poisoning direct dependents.
	Critical bool `json:"critical,omitempty"`
}

// ExecutionPlan is the ordered, dependency-annotated sequence of ToolCalls
// produced for one user turn. It is owned by the turn's execution lifecycle
// and discarded after commit or rejection.
type ExecutionPlan struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Created   time.Time  `json:"created"`
	Steps     []ToolCall `json:"steps"`
}

// Step returns the ToolCall with the given id.
func (p *ExecutionPlan) Step(id string) (ToolCall, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return ToolCall{}, false
}

// MaxRisk returns the highest risk classification across all steps.
func (p *ExecutionPlan) MaxRisk() Risk {
	max := RiskReadOnly
	for _, s := range p.Steps {
		if s.Risk > max {
			max = s.Risk
		}
	}
	return max
}

// RequiresConfirmation reports whether any step forces the plan through the
// confirmation workflow.
func (p *ExecutionPlan) RequiresConfirmation() bool {
	for _, s := range p.Steps {
		if s.Risk.RequiresConfirmation() {
			return true
		}
	}
	return false
}

// Dependents returns the reverse adjacency of the dependency graph: for each
// step id, the ids of steps that declare it as a dependency.
func (p *ExecutionPlan) Dependents() map[string][]string {
	rev := make(map[string][]string, len(p.Steps))
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			rev[dep] = append(rev[dep], s.ID)
		}
	}
	return rev
}

// Validate checks structural soundness: non-empty, unique step ids, dependency
// edges pointing at existing steps, and an acyclic dependency graph. The
// orchestrator validates every plan before handing it to the executor, so a
// plan that fails here never executes.
func (p *ExecutionPlan) Validate() error {
	if len(p.Steps) == 0 {
		return &ValidationError{Field: "steps", Message: "plan has no steps"}
	}
	seen := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.ID == "" {
			return &ValidationError{Field: "steps", Message: "step with empty id"}
		}
		if seen[s.ID] {
			return &ValidationError{Field: "steps", Value: s.ID, Message: "duplicate step id"}
		}
		seen[s.ID] = true
		if s.Capability == "" {
			return &ValidationError{Field: "steps", Value: s.ID, Message: "step has no capability"}
		}
	}
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return &ValidationError{
					Field:   "depends_on",
					Value:   dep,
					Message: fmt.Sprintf("step %s depends on unknown step", s.ID),
				}
			}
			if dep == s.ID {
				return &ValidationError{Field: "depends_on", Value: s.ID, Message: "step depends on itself"}
			}
		}
	}
	return p.checkAcyclic()
}

// checkAcyclic runs Kahn's algorithm over the dependency graph.
func (p *ExecutionPlan) checkAcyclic() error {
	indegree := make(map[string]int, len(p.Steps))
	for _, s := range p.Steps {
		indegree[s.ID] = len(s.DependsOn)
	}
	dependents := p.Dependents()

	queue := make([]string, 0, len(p.Steps))
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(p.Steps) {
		return &ValidationError{Field: "depends_on", Message: "dependency cycle detected"}
	}
	return nil
}
