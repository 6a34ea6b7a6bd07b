package session

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/internal/util"
	"github.com/hupe1980/intentmesh/logging"
)

// Options configure an InMemoryStore.
type Options struct {
	// TTL is the inactivity window after which a session hard-expires.
	TTL time.Duration
	// MaxTurns caps the turn history; the oldest entry is evicted past it.
	MaxTurns int
	// SweepInterval paces the eviction loop. Zero disables the loop; expired
	// sessions are then only collected lazily on access.
	SweepInterval time.Duration
	// Now overrides the clock (tests).
	Now func() time.Time
	// Logger receives sweep records.
	Logger logging.Logger
}

// InMemoryStore is a volatile core.SessionStore keeping sessions in a process
// local map. A single mutex serializes all writes, so operations against the
// same session id never race on its reference slots. Expired sessions are
// dropped lazily on access and by the background sweep loop.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*core.Session
	ttl      time.Duration
	maxTurns int
	now      func() time.Time
	logger   logging.Logger
	done     chan struct{}
	once     sync.Once
}

// NewInMemoryStore constructs a store and starts its sweep loop.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		TTL:           30 * time.Minute,
		MaxTurns:      20,
		SweepInterval: time.Minute,
		Now:           time.Now,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &InMemoryStore{
		sessions: make(map[string]*core.Session),
		ttl:      opts.TTL,
		maxTurns: opts.MaxTurns,
		now:      opts.Now,
		logger:   opts.Logger,
		done:     make(chan struct{}),
	}
	if opts.SweepInterval > 0 {
		go s.sweepLoop(opts.SweepInterval)
	}
	return s
}

// Close stops the sweep loop.
func (s *InMemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

// Create allocates a fresh session for an identity.
func (s *InMemoryStore) Create(_ context.Context, identity string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := core.NewSession(util.NewID(), identity, s.ttl)
	s.sessions[sess.ID] = sess
	return sess.Clone(), nil
}

// Get returns a clone of a live session or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.liveLocked(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// Touch refreshes the session TTL on activity.
func (s *InMemoryStore) Touch(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.liveLocked(sessionID)
	if err != nil {
		return err
	}
	sess.Touch(s.ttl)
	return nil
}

// RecordTurn appends to the bounded turn history.
func (s *InMemoryStore) RecordTurn(_ context.Context, sessionID string, turn core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.liveLocked(sessionID)
	if err != nil {
		return err
	}
	sess.RecordTurn(turn, s.maxTurns)
	return nil
}

// SetReference stores an entity reference under key, overwriting any previous
// value.
func (s *InMemoryStore) SetReference(_ context.Context, sessionID, key string, ref core.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.liveLocked(sessionID)
	if err != nil {
		return err
	}
	sess.SetReference(key, ref)
	return nil
}

// GetReference returns the reference under key.
func (s *InMemoryStore) GetReference(_ context.Context, sessionID, key string) (core.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.liveLocked(sessionID)
	if err != nil {
		return core.Reference{}, err
	}
	ref, ok := sess.GetReference(key)
	if !ok {
		return core.Reference{}, core.ErrReferenceNotFound
	}
	return ref, nil
}

// Delete terminates a session explicitly.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// liveLocked returns the stored session, collecting it first if it expired.
// Caller must hold the lock.
func (s *InMemoryStore) liveLocked(sessionID string) (*core.Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	if sess.Expired(s.now().UTC()) {
		delete(s.sessions, sessionID)
		return nil, core.ErrSessionNotFound
	}
	return sess, nil
}

// sweepLoop periodically drops expired sessions.
func (s *InMemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryStore) sweep() {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("session.sweep", "removed", removed, "remaining", len(s.sessions))
	}
}
