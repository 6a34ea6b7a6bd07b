package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/intentmesh/core"
)

// VerifyCapabilityName is the name of the built-in plan verification
// capability registered by the facade.
const VerifyCapabilityName = "verify_plan_step"

// NewVerificationCapability builds the non-mutating verification step the
// orchestrator schedules ahead of every risky mutation. It re-checks the
// target step's internal consistency: the capability exists, the arguments
// still satisfy its schema, recipient-like fields are non-empty and time-like
// fields parse.
func NewVerificationCapability(registry *Registry) *FunctionCapability {
	check := func(ctx context.Context, args map[string]any) (*core.CapabilityResult, error) {
		target, _ := args["capability"].(string)
		stepArgs, _ := args["args"].(map[string]any)

		if err := registry.ValidateArgs(target, stepArgs); err != nil {
			return nil, &CapabilityError{
				Capability: VerifyCapabilityName,
				Message:    fmt.Sprintf("step arguments no longer valid: %v", err),
				Code:       "VERIFICATION_FAILED",
			}
		}
		for key, value := range stepArgs {
			if err := checkField(key, value); err != nil {
				return nil, &CapabilityError{
					Capability: VerifyCapabilityName,
					Message:    err.Error(),
					Code:       "VERIFICATION_FAILED",
				}
			}
		}
		return &core.CapabilityResult{
			Payload: map[string]any{"capability": target, "consistent": true},
		}, nil
	}

	return NewFunctionCapability(
		VerifyCapabilityName,
		"Re-check a planned step for internal consistency (recipients, times, schema) before it is committed",
		"meta",
		core.RiskReadOnly,
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"capability": map[string]any{"type": "string", "description": "Name of the step's capability"},
				"args":       map[string]any{"type": "object", "description": "The step's argument payload"},
			},
			"required": []string{"capability", "args"},
		},
		check,
		nil,
	)
}

// checkField applies field-name heuristics for the classic planning mistakes:
// empty recipients and unparseable times.
func checkField(key string, value any) error {
	lower := strings.ToLower(key)
	switch {
	case lower == "to" || lower == "recipient" || strings.HasSuffix(lower, "_to"):
		s, ok := value.(string)
		if ok && strings.TrimSpace(s) == "" {
			return fmt.Errorf("recipient field %q is empty", key)
		}
	case lower == "when" || lower == "time" || strings.HasSuffix(lower, "_at"):
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("time field %q is not RFC3339: %q", key, s)
		}
	}
	return nil
}
