package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mnemolabs/mnemo/core"
)

// UserRegistry stores the uid-to-email mapping behind /api/storeUser.
// This is a boundary concern; nothing in the memory subsystem reads it.
type UserRegistry interface {
	Save(ctx context.Context, uid, email string) error
}

// MemoryRegistry is the in-process registry used when no Redis client is
// configured.
type MemoryRegistry struct {
	users sync.Map
}

// NewMemoryRegistry creates an in-process registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

// Save stores the mapping.
func (m *MemoryRegistry) Save(ctx context.Context, uid, email string) error {
	m.users.Store(uid, email)
	return nil
}

const userHashKey = "mnemo:users"

// RedisRegistry stores users in a Redis hash so they survive restarts.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry creates a Redis-backed registry.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

// Save stores the mapping.
func (r *RedisRegistry) Save(ctx context.Context, uid, email string) error {
	if err := r.client.HSet(ctx, userHashKey, uid, email).Err(); err != nil {
		return fmt.Errorf("%w: store user: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}
