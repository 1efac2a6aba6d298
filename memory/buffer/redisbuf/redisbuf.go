// Package redisbuf provides a Redis-backed conversation buffer so
// short-term history survives process restarts and is shared across
// instances.
package redisbuf

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/memory/buffer"
)

const keyPrefix = "mnemo:buffer:"

// Config configures the redis buffer.
type Config struct {
	// TTL is the idle lifetime of an owner's buffer key, refreshed on
	// every read and write. Zero means no expiry.
	TTL time.Duration

	// MaxTurns caps the list length per owner. Zero means unbounded.
	MaxTurns int
}

// Buffer implements buffer.Buffer on a Redis list per owner. Each turn is
// stored as one JSON-encoded list element; the key's TTL is the buffer's
// expiry.
type Buffer struct {
	client *redis.Client
	cfg    Config
}

// New creates a redis buffer on an existing client.
func New(client *redis.Client, cfg Config) *Buffer {
	return &Buffer{client: client, cfg: cfg}
}

type storedTurn struct {
	ID        string    `json:"id"`
	Role      core.Role `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Append pushes turns onto the owner's list and refreshes the TTL.
func (b *Buffer) Append(ctx context.Context, owner string, msgs ...*core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	key := keyPrefix + owner
	values := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(storedTurn{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, data)
	}

	pipe := b.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if b.cfg.MaxTurns > 0 {
		pipe.LTrim(ctx, key, int64(-b.cfg.MaxTurns), -1)
	}
	if b.cfg.TTL > 0 {
		pipe.Expire(ctx, key, b.cfg.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: buffer append: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// History returns the owner's buffered turns in order and refreshes the
// TTL. A missing or expired key reads as empty history.
func (b *Buffer) History(ctx context.Context, owner string) ([]*core.Message, error) {
	key := keyPrefix + owner

	items, err := b.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: buffer read: %v", core.ErrStoreUnavailable, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	if b.cfg.TTL > 0 {
		// Best effort; a failed refresh only shortens the buffer's life.
		b.client.Expire(ctx, key, b.cfg.TTL)
	}

	msgs := make([]*core.Message, 0, len(items))
	for _, item := range items {
		var turn storedTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			continue
		}
		msgs = append(msgs, &core.Message{
			ID:        turn.ID,
			Owner:     owner,
			Role:      turn.Role,
			Content:   turn.Content,
			CreatedAt: turn.CreatedAt,
		})
	}
	return msgs, nil
}

// Drop deletes the owner's buffer key.
func (b *Buffer) Drop(ctx context.Context, owner string) error {
	if err := b.client.Del(ctx, keyPrefix+owner).Err(); err != nil {
		return fmt.Errorf("%w: buffer drop: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the underlying client.
func (b *Buffer) Close() error {
	return b.client.Close()
}

var _ buffer.Buffer = (*Buffer)(nil)
