package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/internal/util"
)

const redisKeyPrefix = "intentmesh:session:"

// RedisOptions configure a RedisStore.
type RedisOptions struct {
	// TTL is the inactivity window; it doubles as the redis key TTL so
	// garbage collection is delegated to redis.
	TTL time.Duration
	// MaxTurns caps the turn history.
	MaxTurns int
}

// RedisStore is a core.SessionStore backed by redis, for deployments where
// several replicas must share conversational context. Sessions are stored as
// JSON values whose key TTL tracks the inactivity window, so expired context
// disappears without a sweep loop. A store-level mutex serializes the
// read-modify-write cycles so two writers never race on one session's
// reference slots within a process.
type RedisStore struct {
	mu       sync.Mutex
	client   *redis.Client
	ttl      time.Duration
	maxTurns int
}

// NewRedisStore connects to the redis instance at url (redis:// form) and
// verifies the connection.
func NewRedisStore(ctx context.Context, url string, optFns ...func(o *RedisOptions)) (*RedisStore, error) {
	opts := RedisOptions{
		TTL:      30 * time.Minute,
		MaxTurns: 20,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: opts.TTL, maxTurns: opts.MaxTurns}, nil
}

// NewRedisStoreFromClient wraps an existing client (tests, custom pooling).
func NewRedisStoreFromClient(client *redis.Client, optFns ...func(o *RedisOptions)) *RedisStore {
	opts := RedisOptions{
		TTL:      30 * time.Minute,
		MaxTurns: 20,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisStore{client: client, ttl: opts.TTL, maxTurns: opts.MaxTurns}
}

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }

// Create allocates a fresh session for an identity.
func (s *RedisStore) Create(ctx context.Context, identity string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := core.NewSession(util.NewID(), identity, s.ttl)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session or core.ErrSessionNotFound once the key TTL lapsed.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, sessionID)
}

// Touch refreshes both the session expiry field and the redis key TTL.
func (s *RedisStore) Touch(ctx context.Context, sessionID string) error {
	return s.update(ctx, sessionID, func(sess *core.Session) {
		sess.Touch(s.ttl)
	})
}

// RecordTurn appends to the bounded turn history.
func (s *RedisStore) RecordTurn(ctx context.Context, sessionID string, turn core.Turn) error {
	return s.update(ctx, sessionID, func(sess *core.Session) {
		sess.RecordTurn(turn, s.maxTurns)
	})
}

// SetReference stores an entity reference under key, overwriting.
func (s *RedisStore) SetReference(ctx context.Context, sessionID, key string, ref core.Reference) error {
	return s.update(ctx, sessionID, func(sess *core.Session) {
		sess.SetReference(key, ref)
	})
}

// GetReference returns the reference under key.
func (s *RedisStore) GetReference(ctx context.Context, sessionID, key string) (core.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.load(ctx, sessionID)
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
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Del(ctx, redisKeyPrefix+sessionID).Err()
}

// update runs one serialized read-modify-write cycle.
func (s *RedisStore) update(ctx context.Context, sessionID string, mutate func(*core.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	mutate(sess)
	return s.save(ctx, sess)
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*core.Session, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+sessionID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var sess core.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, sess *core.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.client.Set(ctx, redisKeyPrefix+sess.ID, data, s.ttl).Err()
}
