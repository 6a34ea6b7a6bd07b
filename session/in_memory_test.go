package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/intentmesh/core"
	"github.com/stretchr/testify/assert"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

// fakeClock is a settable clock shared between test and store.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(clock *fakeClock) *InMemoryStore {
	return NewInMemoryStore(func(o *Options) {
		o.TTL = 30 * time.Minute
		o.MaxTurns = 3
		o.SweepInterval = 0 // lazy expiry only, no background loop in tests
		o.Now = clock.Now
	})
}

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeClock())
	defer store.Close()

	sess, err := store.Create(ctx, "alice")
	assert.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "alice", sess.Identity)

	got, err := store.Get(ctx, sess.ID)
	assert.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	// Get returns a clone; mutating it must not leak into the store.
	got.SetReference("last-email", core.Reference{Kind: "email-thread", ID: "t-1"})
	_, err = store.GetReference(ctx, sess.ID, "last-email")
	assert.ErrorIs(t, err, core.ErrReferenceNotFound)

	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_ExpiryAndTouch(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(clock)
	defer store.Close()

	sess, err := store.Create(ctx, "alice")
	assert.NoError(t, err)

	// Activity inside the window refreshes the deadline.
	clock.Advance(20 * time.Minute)
	assert.NoError(t, store.Touch(ctx, sess.ID))
	clock.Advance(20 * time.Minute)
	_, err = store.Get(ctx, sess.ID)
	assert.NoError(t, err)

	// Past the refreshed window the session is gone, and every operation
	// reports it the same way.
	clock.Advance(31 * time.Minute)
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.ErrorIs(t, store.Touch(ctx, sess.ID), core.ErrSessionNotFound)
	assert.ErrorIs(t, store.RecordTurn(ctx, sess.ID, core.Turn{Role: "user", Text: "hi"}), core.ErrSessionNotFound)
	assert.ErrorIs(t, store.SetReference(ctx, sess.ID, "k", core.Reference{}), core.ErrSessionNotFound)
}

func TestInMemoryStore_ReferenceOverwrite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeClock())
	defer store.Close()

	sess, _ := store.Create(ctx, "alice")
	assert.NoError(t, store.SetReference(ctx, sess.ID, "last-email", core.Reference{Kind: "email-thread", ID: "t-1"}))
	assert.NoError(t, store.SetReference(ctx, sess.ID, "last-email", core.Reference{Kind: "email-thread", ID: "t-2"}))

	ref, err := store.GetReference(ctx, sess.ID, "last-email")
	assert.NoError(t, err)
	assert.Equal(t, "t-2", ref.ID)

	_, err = store.GetReference(ctx, sess.ID, "last-contact")
	assert.ErrorIs(t, err, core.ErrReferenceNotFound)
}

func TestInMemoryStore_TurnHistoryBounded(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeClock())
	defer store.Close()

	sess, _ := store.Create(ctx, "alice")
	for _, text := range []string{"one", "two", "three", "four"} {
		assert.NoError(t, store.RecordTurn(ctx, sess.ID, core.Turn{Role: "user", Text: text}))
	}

	got, err := store.Get(ctx, sess.ID)
	assert.NoError(t, err)
	turns := got.RecentTurns()
	assert.Len(t, turns, 3)
	assert.Equal(t, "two", turns[0].Text)
	assert.Equal(t, "four", turns[2].Text)
}

func TestInMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeClock())
	defer store.Close()

	sess, _ := store.Create(ctx, "alice")
	assert.NoError(t, store.Delete(ctx, sess.ID))
	_, err := store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.NoError(t, store.Delete(ctx, sess.ID), "deleting twice is a no-op")
}

func TestInMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(clock)
	defer store.Close()

	a, _ := store.Create(ctx, "alice")
	clock.Advance(20 * time.Minute)
	b, _ := store.Create(ctx, "bob")

	clock.Advance(15 * time.Minute) // alice past 30m, bob at 15m
	store.sweep()

	_, err := store.Get(ctx, a.ID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	_, err = store.Get(ctx, b.ID)
	assert.NoError(t, err)
}
