// Package buffer defines the short-term conversation buffer: an ordered
// sequence of recent turns per owner, bounded by a TTL.
package buffer

import (
	"context"

	"github.com/mnemolabs/mnemo/core"
)

// Buffer holds an owner's recent turns in order. Every read and write
// refreshes the entry's TTL; expiry is checked lazily on the next access.
// An expired or missing entry reads as empty history, never as an error.
type Buffer interface {
	// Append adds turns to the end of the owner's buffer and refreshes
	// its TTL, creating the buffer on first use.
	Append(ctx context.Context, owner string, msgs ...*core.Message) error

	// History returns the owner's buffered turns in chronological order,
	// refreshing the TTL. Returns nil when the buffer is absent or expired.
	History(ctx context.Context, owner string) ([]*core.Message, error)

	// Drop removes the owner's buffer entry if present.
	Drop(ctx context.Context, owner string) error

	// Close releases backend resources.
	Close() error
}
