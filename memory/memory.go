package memory

import (
	"context"
	"strings"

	"github.com/mnemolabs/mnemo/core"
)

// Manager is the single retrieval interface behind which all memory
// variants live. The engine is opinionated about WHEN memory is used
// (load before completion, record around it); Managers decide HOW:
// which turns to retrieve, how to format them, and where they persist.
//
// Implementations:
//   - VectorManager: similarity search over a vector Store
//   - BufferManager: short-term TTL conversation buffer
//   - CombinedManager: both, buffer for recency and store for relevance
type Manager interface {
	// LoadContext returns the owner's relevant prior turns as role-tagged
	// lines, most relevant first, one turn per line. Returns "" when the
	// owner has no history; that is not an error.
	LoadContext(ctx context.Context, owner, query string) (string, error)

	// RecordTurn persists the human and assistant turns, in that order.
	// A turn that is empty after trimming whitespace is skipped.
	RecordTurn(ctx context.Context, owner, humanText, assistantText string) error

	// Clear removes all of the owner's persisted turns and drops any
	// short-term buffer entry. Must never touch another owner's data.
	Clear(ctx context.Context, owner string) error
}

// Store is the long-term vector storage backend.
// Implementations must scope every read and delete by owner.
type Store interface {
	// EnsureCollection creates the collection on first use. Idempotent:
	// a second call with the same configuration is a no-op, and a
	// concurrent duplicate create is treated as success. A dimension
	// mismatch against an existing collection is a fatal core.ErrConfig.
	EnsureCollection(ctx context.Context) error

	// Upsert writes one message point. When msg.Vector is empty the store
	// embeds msg.Content first; an embedding failure rejects the write.
	Upsert(ctx context.Context, msg *core.Message) error

	// Search returns up to k points owned by owner, most similar first.
	// Ties are broken by the more recent timestamp. Fewer than k matches
	// is a normal result, not an error.
	Search(ctx context.Context, owner string, queryVector []float32, k int) ([]*core.Message, error)

	// DeleteAll removes every point owned by owner, atomically from the
	// caller's perspective.
	DeleteAll(ctx context.Context, owner string) error

	// Close releases backend resources.
	Close() error
}

// Embedder converts text to a fixed-dimension vector.
// Implementations: mock (tests), openai (hosted embedding API).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size. Fixed per embedder;
	// the store validates every vector against it.
	Dimensions() int
}

// FormatLine renders one turn as a single context line ("Human: ..." or
// "AI: ..."). Newlines in the content are flattened so that the context
// assembler can truncate on whole lines.
func FormatLine(msg *core.Message) string {
	content := strings.ReplaceAll(msg.Content, "\n", " ")
	return msg.Label() + ": " + content
}
