// Package local provides an in-process conversation buffer backed by
// ristretto. Suitable for single-instance deployments and tests; the
// redis buffer is the externalized equivalent.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/memory/buffer"
)

// Config configures the local buffer.
type Config struct {
	// TTL is the idle lifetime of an owner's buffer. Refreshed on every
	// read and write. Zero means entries never expire.
	TTL time.Duration

	// MaxTurns caps the number of buffered turns per owner; older turns
	// are dropped first. Zero means unbounded.
	MaxTurns int
}

// Buffer implements buffer.Buffer on a ristretto cache. The cache is the
// expiry mechanism only, never the source of truth: a dropped or expired
// entry reads as empty history.
type Buffer struct {
	cache *ristretto.Cache
	cfg   Config

	// Ristretto applies cache writes asynchronously, so appends serialize
	// behind a mutex and wait for the write buffer to drain. That keeps
	// read-your-writes within one process.
	mu sync.Mutex
}

// New creates a local buffer.
func New(cfg Config) (*Buffer, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 26,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Buffer{cache: cache, cfg: cfg}, nil
}

// Append adds turns to the owner's buffer and refreshes its TTL.
func (b *Buffer) Append(ctx context.Context, owner string, msgs ...*core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	history := b.load(owner)
	history = append(history, msgs...)
	if b.cfg.MaxTurns > 0 && len(history) > b.cfg.MaxTurns {
		history = history[len(history)-b.cfg.MaxTurns:]
	}

	b.store(owner, history)
	return nil
}

// History returns the owner's buffered turns in order, refreshing the
// TTL. An absent or expired buffer returns nil.
func (b *Buffer) History(ctx context.Context, owner string) ([]*core.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	history := b.load(owner)
	if history == nil {
		return nil, nil
	}

	// Re-store to reset the TTL on read.
	b.store(owner, history)

	out := make([]*core.Message, len(history))
	copy(out, history)
	return out, nil
}

// Drop removes the owner's buffer entry.
func (b *Buffer) Drop(ctx context.Context, owner string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Del(owner)
	return nil
}

// Close releases the cache.
func (b *Buffer) Close() error {
	b.cache.Close()
	return nil
}

func (b *Buffer) load(owner string) []*core.Message {
	val, ok := b.cache.Get(owner)
	if !ok {
		return nil
	}
	history, ok := val.([]*core.Message)
	if !ok {
		return nil
	}
	return history
}

func (b *Buffer) store(owner string, history []*core.Message) {
	cost := int64(len(history))
	if b.cfg.TTL > 0 {
		b.cache.SetWithTTL(owner, history, cost, b.cfg.TTL)
	} else {
		b.cache.Set(owner, history, cost)
	}
	b.cache.Wait()
}

var _ buffer.Buffer = (*Buffer)(nil)
