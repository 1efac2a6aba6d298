package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/logging"
)

// DefaultTopK is the number of prior turns retrieved per query when the
// manager is not configured otherwise.
const DefaultTopK = 5

// VectorManager is the long-term memory variant: every turn is embedded
// and persisted in the vector store, and context is the top-k most
// relevant prior turns for the query.
type VectorManager struct {
	store    Store
	embedder Embedder
	topK     int
}

// NewVectorManager creates a vector-backed manager. topK <= 0 selects
// DefaultTopK.
func NewVectorManager(store Store, embedder Embedder, topK int) *VectorManager {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &VectorManager{store: store, embedder: embedder, topK: topK}
}

// LoadContext embeds the query and returns the owner's top-k most
// relevant turns as role-tagged lines, most relevant first.
func (m *VectorManager) LoadContext(ctx context.Context, owner, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: embed query: %v", core.ErrEmbedding, err)
	}

	msgs, err := m.store.Search(ctx, owner, vec, m.topK)
	if err != nil {
		return "", fmt.Errorf("search history: %w", err)
	}

	logging.From(ctx).Debug("retrieved context", "owner", owner, "turns", len(msgs))
	return joinLines(msgs), nil
}

// RecordTurn persists the human turn then the assistant turn. Turns that
// are empty after trimming are skipped.
func (m *VectorManager) RecordTurn(ctx context.Context, owner, humanText, assistantText string) error {
	for _, turn := range []struct {
		role core.Role
		text string
	}{
		{core.RoleHuman, humanText},
		{core.RoleAssistant, assistantText},
	} {
		text := strings.TrimSpace(turn.text)
		if text == "" {
			continue
		}
		if err := m.store.Upsert(ctx, core.NewMessage(owner, turn.role, text)); err != nil {
			return fmt.Errorf("record %s turn: %w", turn.role, err)
		}
	}
	return nil
}

// Clear removes all of the owner's stored turns.
func (m *VectorManager) Clear(ctx context.Context, owner string) error {
	return m.store.DeleteAll(ctx, owner)
}

func joinLines(msgs []*core.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, FormatLine(msg))
	}
	return strings.Join(lines, "\n")
}

var _ Manager = (*VectorManager)(nil)
