package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn owned by exactly one Owner.
// Messages are immutable once written; they are only removed by an
// explicit clear of the owner's memory.
type Message struct {
	// ID is a unique identifier for the message point.
	ID string

	// Owner scopes the message to a user or session. Retrieval and
	// deletion are always filtered by Owner.
	Owner string

	// Role is who produced the content (human or assistant).
	Role Role

	// Content is the message text.
	Content string

	// Vector is the embedding of Content. May be empty before storage;
	// the store embeds on write when absent.
	Vector []float32

	// CreatedAt is when the turn was recorded.
	CreatedAt time.Time
}

// NewMessage creates a Message for a new conversation turn.
func NewMessage(owner string, role Role, content string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Owner:     owner,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Label returns the role tag used when formatting the message into
// prompt context ("Human" or "AI").
func (m *Message) Label() string {
	if m.Role == RoleAssistant {
		return "AI"
	}
	return "Human"
}
