package memory

import (
	"context"
	"strings"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/memory/buffer"
)

// BufferManager is the short-term memory variant: context is the owner's
// recent turns in chronological order, bounded by the buffer's TTL. The
// query is not used for selection.
type BufferManager struct {
	buf buffer.Buffer
}

// NewBufferManager creates a buffer-backed manager.
func NewBufferManager(buf buffer.Buffer) *BufferManager {
	return &BufferManager{buf: buf}
}

// LoadContext returns the buffered turns as role-tagged lines. An absent
// or expired buffer yields an empty context.
func (m *BufferManager) LoadContext(ctx context.Context, owner, query string) (string, error) {
	msgs, err := m.buf.History(ctx, owner)
	if err != nil {
		return "", err
	}
	return joinLines(msgs), nil
}

// RecordTurn appends the human then assistant turns to the buffer,
// refreshing its TTL. Empty turns are skipped.
func (m *BufferManager) RecordTurn(ctx context.Context, owner, humanText, assistantText string) error {
	msgs := turnsToMessages(owner, humanText, assistantText)
	if len(msgs) == 0 {
		return nil
	}
	return m.buf.Append(ctx, owner, msgs...)
}

// Clear drops the owner's buffer entry.
func (m *BufferManager) Clear(ctx context.Context, owner string) error {
	return m.buf.Drop(ctx, owner)
}

func turnsToMessages(owner, humanText, assistantText string) []*core.Message {
	var msgs []*core.Message
	if text := strings.TrimSpace(humanText); text != "" {
		msgs = append(msgs, core.NewMessage(owner, core.RoleHuman, text))
	}
	if text := strings.TrimSpace(assistantText); text != "" {
		msgs = append(msgs, core.NewMessage(owner, core.RoleAssistant, text))
	}
	return msgs
}

var _ Manager = (*BufferManager)(nil)
