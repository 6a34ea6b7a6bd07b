package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testPlan(steps ...ToolCall) *ExecutionPlan {
	return &ExecutionPlan{
		ID:        "plan-1",
		SessionID: "sess-1",
		Created:   time.Now().UTC(),
		Steps:     steps,
	}
}

func TestPlanValidate_Success(t *testing.T) {
	p := testPlan(
		ToolCall{ID: "a", Capability: "lookup", Risk: RiskReadOnly},
		ToolCall{ID: "b", Capability: "draft", Risk: RiskLow, DependsOn: []string{"a"}},
		ToolCall{ID: "c", Capability: "send", Risk: RiskHigh, DependsOn: []string{"b"}},
	)
	assert.NoError(t, p.Validate())
}

func TestPlanValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		plan *ExecutionPlan
		msg  string
	}{
		{"empty", testPlan(), "no steps"},
		{"duplicate id", testPlan(
			ToolCall{ID: "a", Capability: "x"},
			ToolCall{ID: "a", Capability: "y"},
		), "duplicate step id"},
		{"missing capability", testPlan(ToolCall{ID: "a"}), "no capability"},
		{"unknown dependency", testPlan(
			ToolCall{ID: "a", Capability: "x", DependsOn: []string{"ghost"}},
		), "unknown step"},
		{"self dependency", testPlan(
			ToolCall{ID: "a", Capability: "x", DependsOn: []string{"a"}},
		), "depends on itself"},
		{"cycle", testPlan(
			ToolCall{ID: "a", Capability: "x", DependsOn: []string{"b"}},
			ToolCall{ID: "b", Capability: "y", DependsOn: []string{"a"}},
		), "cycle"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.plan.Validate()
			assert.Error(t, err)
			vErr, ok := err.(*ValidationError)
			assert.True(t, ok, "expected *ValidationError, got %T", err)
			assert.Contains(t, vErr.Message, tc.msg)
		})
	}
}

func TestPlanMaxRiskAndConfirmation(t *testing.T) {
	readOnly := testPlan(
		ToolCall{ID: "a", Capability: "list", Risk: RiskReadOnly},
		ToolCall{ID: "b", Capability: "search", Risk: RiskReadOnly},
	)
	assert.Equal(t, RiskReadOnly, readOnly.MaxRisk())
	assert.False(t, readOnly.RequiresConfirmation())

	mixed := testPlan(
		ToolCall{ID: "a", Capability: "list", Risk: RiskReadOnly},
		ToolCall{ID: "b", Capability: "send", Risk: RiskHigh},
	)
	assert.Equal(t, RiskHigh, mixed.MaxRisk())
	assert.True(t, mixed.RequiresConfirmation())

	// A single low-risk mutation is enough to force confirmation.
	low := testPlan(ToolCall{ID: "a", Capability: "save_draft", Risk: RiskLow})
	assert.True(t, low.RequiresConfirmation())
}

func TestPlanDependents(t *testing.T) {
	p := testPlan(
		ToolCall{ID: "a", Capability: "x"},
		ToolCall{ID: "b", Capability: "y", DependsOn: []string{"a"}},
		ToolCall{ID: "c", Capability: "z", DependsOn: []string{"a", "b"}},
	)
	rev := p.Dependents()
	assert.ElementsMatch(t, []string{"b", "c"}, rev["a"])
	assert.ElementsMatch(t, []string{"c"}, rev["b"])
	assert.Empty(t, rev["c"])
}

func TestExecutionReport_SucceededAndFailures(t *testing.T) {
	empty := &ExecutionReport{PlanID: "p"}
	assert.False(t, empty.Succeeded(), "empty report must not count as success")

	ok := &ExecutionReport{Results: []ToolResult{
		{CallID: "a", Status: StatusSuccess},
		{CallID: "b", Status: StatusSuccess},
	}}
	assert.True(t, ok.Succeeded())
	assert.Empty(t, ok.Failures())

	mixed := &ExecutionReport{Results: []ToolResult{
		{CallID: "a", Status: StatusSuccess},
		{CallID: "b", Status: StatusFailure},
		{CallID: "c", Status: StatusDependencyFailure},
	}}
	assert.False(t, mixed.Succeeded())
	failures := mixed.Failures()
	assert.Len(t, failures, 2)
	assert.Equal(t, "b", failures[0].CallID)
	assert.Equal(t, "c", failures[1].CallID)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusSuccess.Terminal())
	for _, s := range []Status{StatusFailure, StatusNeedsDisambiguation, StatusDependencyFailure, StatusAborted} {
		assert.True(t, s.Terminal(), "status %s should block dependents", s)
	}
}

func TestParseRiskRoundTrip(t *testing.T) {
	for _, r := range []Risk{RiskReadOnly, RiskLow, RiskMedium, RiskHigh} {
		parsed, err := ParseRisk(r.String())
		assert.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	_, err := ParseRisk("catastrophic")
	assert.Error(t, err)
}
