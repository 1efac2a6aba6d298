package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/memory/buffer/local"
)

func TestNewManagerBufferModeNeedsNoEmbeddingKey(t *testing.T) {
	buf, err := local.New(local.Config{TTL: time.Minute, MaxTurns: 10})
	if err != nil {
		t.Fatalf("failed to create buffer: %v", err)
	}
	defer buf.Close()

	// No embedding credentials configured: buffer mode never embeds, so
	// this must still come up.
	cfg := &serveConfig{memoryMode: "buffer"}
	mgr, err := newManager(context.Background(), cfg, buf)
	if err != nil {
		t.Fatalf("buffer mode must not require an embedding key: %v", err)
	}
	if mgr == nil {
		t.Fatal("expected a manager")
	}
}

func TestNewManagerVectorModeRequiresEmbeddingKey(t *testing.T) {
	cfg := &serveConfig{memoryMode: "vector", embeddingDims: 8}
	if _, err := newManager(context.Background(), cfg, nil); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig without embedding credentials, got: %v", err)
	}
}

func TestNewManagerUnknownMode(t *testing.T) {
	cfg := &serveConfig{memoryMode: "holographic"}
	if _, err := newManager(context.Background(), cfg, nil); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig for unknown mode, got: %v", err)
	}
}
