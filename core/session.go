package core

import (
	"context"
	"sync"
	"time"
)

// Turn is one utterance/response pair recorded into session history.
type Turn struct {
	Role string    `json:"role"` // "user" or "assistant"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Reference points at a domain entity (a thread, contact, event) resolved in
// an earlier turn. Stored in session reference slots so follow-up utterances
// ("reply to it") resolve without a fresh lookup.
type Reference struct {
	Kind  string `json:"kind"` // "email-thread", "contact", "calendar-event", ...
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Session holds bounded, time-limited conversational state for one identity.
// It is safe for concurrent access, but writers are expected to go through a
// SessionStore, which serializes operations against the same session id.
//
// Contract:
//   - RecordTurn evicts the oldest turn past the configured cap
//   - Reference slots hold at most one value per key; SetReference overwrites
//   - Touch extends Expires; Expired sessions are swept by the store
//   - Clone performs deep copies for safe divergence.
type Session struct {
	ID       string               `json:"id"`
	Identity string               `json:"identity"`
	Created  time.Time            `json:"created"`
	Expires  time.Time            `json:"expires"`
	Turns    []Turn               `json:"turns"`
	Refs     map[string]Reference `json:"refs"`
	mu       sync.RWMutex
}

// NewSession creates a session for an identity with the given TTL.
func NewSession(id, identity string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:       id,
		Identity: identity,
		Created:  now,
		Expires:  now.Add(ttl),
		Turns:    []Turn{},
		Refs:     map[string]Reference{},
	}
}

// Touch extends the expiry deadline by ttl from now.
func (s *Session) Touch(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Expires = time.Now().UTC().Add(ttl)
}

// Expired reports whether the session outlived its inactivity window.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.After(s.Expires)
}

// RecordTurn appends to the bounded history, evicting the oldest entry once
// the cap is exceeded. A cap of zero means unbounded.
func (s *Session) RecordTurn(turn Turn, cap int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Turns = append(s.Turns, turn)
	if cap > 0 && len(s.Turns) > cap {
		s.Turns = s.Turns[len(s.Turns)-cap:]
	}
}

// SetReference stores ref under key, overwriting any previous value.
func (s *Session) SetReference(key string, ref Reference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Refs[key] = ref
}

// GetReference returns the reference stored under key.
func (s *Session) GetReference(key string) (Reference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.Refs[key]
	return ref, ok
}

// ReferenceSnapshot returns a defensive copy of the reference slots.
func (s *Session) ReferenceSnapshot() map[string]Reference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Reference, len(s.Refs))
	for k, v := range s.Refs {
		out[k] = v
	}
	return out
}

// RecentTurns returns a defensive copy of the turn history.
func (s *Session) RecentTurns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.Turns))
	copy(out, s.Turns)
	return out
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:       s.ID,
		Identity: s.Identity,
		Created:  s.Created,
		Expires:  s.Expires,
		Turns:    make([]Turn, len(s.Turns)),
		Refs:     make(map[string]Reference, len(s.Refs)),
	}
	copy(clone.Turns, s.Turns)
	for k, v := range s.Refs {
		clone.Refs[k] = v
	}
	return clone
}

// SessionStore owns Session lifecycle: lazy creation on first turn, TTL
// refresh on activity, and garbage collection after the inactivity window.
// Operations against the same session id are serialized by the store, so no
// two writers race on one session's reference slots. Methods take a
// context.Context because backends may sit behind a network (see the redis
// implementation).
type SessionStore interface {
	// Create allocates a fresh session for an identity.
	Create(ctx context.Context, identity string) (*Session, error)
	// Get returns a clone of the session, or ErrSessionNotFound if the id is
	// unknown or the session expired.
	Get(ctx context.Context, sessionID string) (*Session, error)
	// Touch refreshes the session TTL on activity.
	Touch(ctx context.Context, sessionID string) error
	// RecordTurn appends to the bounded turn history.
	RecordTurn(ctx context.Context, sessionID string, turn Turn) error
	// SetReference stores an entity reference under key, overwriting.
	SetReference(ctx context.Context, sessionID, key string, ref Reference) error
	// GetReference returns the reference under key, or ErrReferenceNotFound.
	GetReference(ctx context.Context, sessionID, key string) (Reference, error)
	// Delete terminates a session explicitly.
	Delete(ctx context.Context, sessionID string) error
}
