package session

import (
	"testing"

	"github.com/hupe1980/intentmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*RedisStore)(nil)

func TestRedisStore_InterfaceOnly(t *testing.T) {
	// Behavior is covered by the shared store contract against InMemoryStore;
	// exercising RedisStore needs a live server.
}
