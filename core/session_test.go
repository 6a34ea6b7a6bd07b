package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_TouchAndExpiry(t *testing.T) {
	s := NewSession("s1", "alice", time.Minute)
	now := time.Now().UTC()
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(2*time.Minute)))

	s.Touch(time.Hour)
	assert.False(t, s.Expired(now.Add(2*time.Minute)))
}

func TestSession_RecordTurnEvictsOldest(t *testing.T) {
	s := NewSession("s1", "alice", time.Minute)
	for i := 0; i < 5; i++ {
		s.RecordTurn(Turn{Role: "user", Text: fmt.Sprintf("turn-%d", i)}, 3)
	}
	turns := s.RecentTurns()
	assert.Len(t, turns, 3)
	assert.Equal(t, "turn-2", turns[0].Text)
	assert.Equal(t, "turn-4", turns[2].Text)
}

func TestSession_SetReferenceOverwrites(t *testing.T) {
	s := NewSession("s1", "alice", time.Minute)
	s.SetReference("last-email", Reference{Kind: "email-thread", ID: "t-1"})
	s.SetReference("last-email", Reference{Kind: "email-thread", ID: "t-2"})

	ref, ok := s.GetReference("last-email")
	assert.True(t, ok)
	assert.Equal(t, "t-2", ref.ID)

	_, ok = s.GetReference("last-contact")
	assert.False(t, ok)
}

func TestSession_CloneIsIndependent(t *testing.T) {
	s := NewSession("s1", "alice", time.Minute)
	s.SetReference("last-email", Reference{Kind: "email-thread", ID: "t-1"})
	s.RecordTurn(Turn{Role: "user", Text: "hi"}, 0)

	clone := s.Clone()
	assert.NotSame(t, s, clone)

	clone.SetReference("last-contact", Reference{Kind: "contact", ID: "c-1"})
	clone.RecordTurn(Turn{Role: "assistant", Text: "hello"}, 0)

	_, ok := s.GetReference("last-contact")
	assert.False(t, ok, "original should not see clone's new reference")
	assert.Len(t, s.RecentTurns(), 1)
}

func TestSession_SnapshotsAreDefensive(t *testing.T) {
	s := NewSession("s1", "alice", time.Minute)
	s.SetReference("last-email", Reference{Kind: "email-thread", ID: "t-1"})

	snap := s.ReferenceSnapshot()
	snap["last-email"] = Reference{Kind: "email-thread", ID: "tampered"}
	ref, _ := s.GetReference("last-email")
	assert.Equal(t, "t-1", ref.ID)

	s.RecordTurn(Turn{Role: "user", Text: "hi"}, 0)
	turns := s.RecentTurns()
	turns[0].Text = "tampered"
	assert.Equal(t, "hi", s.RecentTurns()[0].Text)
}
