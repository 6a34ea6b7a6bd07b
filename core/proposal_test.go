package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProposalState_Terminal(t *testing.T) {
	for _, s := range []ProposalState{StateDrafted, StateAwaitingConfirmation, StateConfirmed, StateExecuting} {
		assert.False(t, s.Terminal(), "state %s should allow transitions", s)
	}
	for _, s := range []ProposalState{StateExecuted, StateRejected, StateExpired} {
		assert.True(t, s.Terminal(), "state %s should be terminal", s)
	}
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("accept")
	assert.NoError(t, err)
	assert.Equal(t, DecisionAccept, d)

	d, err = ParseDecision("reject")
	assert.NoError(t, err)
	assert.Equal(t, DecisionReject, d)

	d, err = ParseDecision("modify")
	assert.NoError(t, err)
	assert.Equal(t, DecisionModify, d)

	_, err = ParseDecision("maybe")
	assert.Error(t, err)
}

func TestApprovalCovers(t *testing.T) {
	plan := &ExecutionPlan{ID: "plan-1"}

	var missing *Approval
	assert.False(t, missing.Covers(plan), "nil approval covers nothing")

	assert.False(t, (&Approval{PlanID: "plan-2"}).Covers(plan), "approval for another plan must not transfer")
	assert.True(t, (&Approval{PlanID: "plan-1"}).Covers(plan))
}
