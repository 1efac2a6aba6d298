package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/logging"
	"github.com/mnemolabs/mnemo/memory/buffer"
)

// CombinedManager layers a short-term buffer over long-term vector
// memory. Context is the top-k relevant turns from the store followed by
// buffered recent turns not already retrieved. The store remains the
// source of truth; losing the buffer only loses recency, never history.
type CombinedManager struct {
	vector *VectorManager
	buf    buffer.Buffer
}

// NewCombinedManager creates a combined manager.
func NewCombinedManager(store Store, embedder Embedder, buf buffer.Buffer, topK int) *CombinedManager {
	return &CombinedManager{
		vector: NewVectorManager(store, embedder, topK),
		buf:    buf,
	}
}

// LoadContext merges relevance-ranked history with the recent buffer.
// Buffer failures degrade to vector-only context.
func (m *CombinedManager) LoadContext(ctx context.Context, owner, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	vec, err := m.vector.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: embed query: %v", core.ErrEmbedding, err)
	}

	relevant, err := m.vector.store.Search(ctx, owner, vec, m.vector.topK)
	if err != nil {
		return "", fmt.Errorf("search history: %w", err)
	}

	recent, err := m.buf.History(ctx, owner)
	if err != nil {
		logging.From(ctx).Warn("buffer read failed, using vector context only",
			"owner", owner, "error", err)
		recent = nil
	}

	seen := make(map[string]bool, len(relevant))
	for _, msg := range relevant {
		seen[msg.ID] = true
	}

	lines := make([]string, 0, len(relevant)+len(recent))
	for _, msg := range relevant {
		lines = append(lines, FormatLine(msg))
	}
	for _, msg := range recent {
		if !seen[msg.ID] {
			lines = append(lines, FormatLine(msg))
		}
	}
	return strings.Join(lines, "\n"), nil
}

// RecordTurn writes to the store first, then mirrors into the buffer. A
// buffer failure is logged but does not fail the write; the store copy is
// authoritative.
func (m *CombinedManager) RecordTurn(ctx context.Context, owner, humanText, assistantText string) error {
	msgs := turnsToMessages(owner, humanText, assistantText)
	if len(msgs) == 0 {
		return nil
	}

	for _, msg := range msgs {
		if err := m.vector.store.Upsert(ctx, msg); err != nil {
			return fmt.Errorf("record %s turn: %w", msg.Role, err)
		}
	}

	if err := m.buf.Append(ctx, owner, msgs...); err != nil {
		logging.From(ctx).Warn("buffer append failed", "owner", owner, "error", err)
	}
	return nil
}

// Clear removes the owner's stored turns and drops the buffer entry.
func (m *CombinedManager) Clear(ctx context.Context, owner string) error {
	storeErr := m.vector.store.DeleteAll(ctx, owner)
	bufErr := m.buf.Drop(ctx, owner)
	return errors.Join(storeErr, bufErr)
}

var _ Manager = (*CombinedManager)(nil)
