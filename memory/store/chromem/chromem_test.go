package chromem_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/memory/embedder/mock"
	"github.com/mnemolabs/mnemo/memory/store/chromem"
)

const dims = 4

func newStore(t *testing.T) *chromem.Store {
	t.Helper()
	store, err := chromem.New(mock.New(dims), chromem.Config{
		Collection: "test",
		Dimensions: dims,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func msgWithVector(owner string, role core.Role, content string, vec []float32) *core.Message {
	msg := core.NewMessage(owner, role, content)
	msg.Vector = vec
	return msg
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	if err := store.EnsureCollection(ctx); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		t.Fatalf("second ensure should be a no-op, got: %v", err)
	}
}

func TestDimensionMismatchIsFatal(t *testing.T) {
	_, err := chromem.New(mock.New(dims), chromem.Config{
		Collection: "test",
		Dimensions: dims + 1,
	})
	if !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig for embedder/collection mismatch, got: %v", err)
	}

	store := newStore(t)
	msg := msgWithVector("u1", core.RoleHuman, "hello", []float32{1, 0})
	if err := store.Upsert(context.Background(), msg); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig for wrong vector size, got: %v", err)
	}
}

func TestPersistentReopenChecksDimensions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := chromem.New(mock.New(dims), chromem.Config{
		Collection: "test",
		Dimensions: dims,
		Path:       dir,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := store.Upsert(ctx, core.NewMessage("u1", core.RoleHuman, "persist me")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	store.Close()

	// Same directory, same dimension: the collection reopens cleanly and
	// the persisted point is still there.
	reopened, err := chromem.New(mock.New(dims), chromem.Config{
		Collection: "test",
		Dimensions: dims,
		Path:       dir,
	})
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	if err := reopened.EnsureCollection(ctx); err != nil {
		t.Fatalf("reopen with matching dimension failed: %v", err)
	}
	vec, err := mock.New(dims).Embed(ctx, "persist me")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	results, err := reopened.Search(ctx, "u1", vec, 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the persisted point to survive, got %d results", len(results))
	}
	reopened.Close()

	// Same directory, different dimension: fatal, never a silent mix of
	// vector sizes in one collection.
	mismatched, err := chromem.New(mock.New(dims*2), chromem.Config{
		Collection: "test",
		Dimensions: dims * 2,
		Path:       dir,
	})
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	if err := mismatched.EnsureCollection(ctx); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig reopening with a different dimension, got: %v", err)
	}
}

func TestUpsertRejectsEmptyContent(t *testing.T) {
	store := newStore(t)

	err := store.Upsert(context.Background(), core.NewMessage("u1", core.RoleHuman, "   "))
	if !errors.Is(err, core.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding for empty content, got: %v", err)
	}
}

func TestUpsertEmbedsWhenVectorMissing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	if err := store.Upsert(ctx, core.NewMessage("u1", core.RoleHuman, "hello world")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// The mock embedder is deterministic, so the same text as a query
	// retrieves the stored point with maximum similarity.
	vec, err := mock.New(dims).Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	results, err := store.Search(ctx, "u1", vec, 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Content != "hello world" {
		t.Errorf("unexpected content: %q", results[0].Content)
	}
}

func TestSearchOrderedBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	// Unit vectors with known cosine similarity to the query [1,0,0,0].
	points := []struct {
		content string
		vec     []float32
	}{
		{"exact", []float32{1, 0, 0, 0}},
		{"close", []float32{0.8, 0.6, 0, 0}},
		{"far", []float32{0, 1, 0, 0}},
	}
	for _, p := range points {
		if err := store.Upsert(ctx, msgWithVector("u1", core.RoleHuman, p.content, p.vec)); err != nil {
			t.Fatalf("upsert %q failed: %v", p.content, err)
		}
	}

	query := []float32{1, 0, 0, 0}
	results, err := store.Search(ctx, "u1", query, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected at most k=2 results, got %d", len(results))
	}
	if results[0].Content != "exact" || results[1].Content != "close" {
		t.Errorf("wrong order: got %q, %q", results[0].Content, results[1].Content)
	}
}

func TestSearchTieBreaksNewerFirst(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	vec := []float32{0, 0, 1, 0}
	older := msgWithVector("u1", core.RoleHuman, "older", vec)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := msgWithVector("u1", core.RoleHuman, "newer", vec)

	for _, msg := range []*core.Message{older, newer} {
		if err := store.Upsert(ctx, msg); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	results, err := store.Search(ctx, "u1", vec, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Content != "newer" {
		t.Errorf("expected newer point first on tie, got %q", results[0].Content)
	}
}

func TestSearchNeverCrossesOwners(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	vec := []float32{1, 0, 0, 0}
	if err := store.Upsert(ctx, msgWithVector("alice", core.RoleHuman, "alice's secret", vec)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, msgWithVector("bob", core.RoleHuman, "bob's secret", vec)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	results, err := store.Search(ctx, "alice", vec, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, msg := range results {
		if msg.Owner != "alice" {
			t.Errorf("owner isolation violated: got point owned by %q", msg.Owner)
		}
	}
	if len(results) != 1 {
		t.Errorf("expected exactly alice's point, got %d results", len(results))
	}
}

func TestSearchShortResultIsNotAnError(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	vec := []float32{1, 0, 0, 0}
	if err := store.Upsert(ctx, msgWithVector("u1", core.RoleHuman, "only one", vec)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	results, err := store.Search(ctx, "u1", vec, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}

	empty, err := store.Search(ctx, "nobody", vec, 5)
	if err != nil {
		t.Fatalf("search for unknown owner failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no results for unknown owner, got %d", len(empty))
	}
}

func TestDeleteAllRemovesOnlyOwner(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	vec := []float32{1, 0, 0, 0}
	for _, content := range []string{"first", "second"} {
		if err := store.Upsert(ctx, msgWithVector("alice", core.RoleHuman, content, vec)); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}
	if err := store.Upsert(ctx, msgWithVector("bob", core.RoleHuman, "keep me", vec)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if err := store.DeleteAll(ctx, "alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	gone, err := store.Search(ctx, "alice", vec, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(gone) != 0 {
		t.Errorf("expected no results after delete, got %d", len(gone))
	}

	kept, err := store.Search(ctx, "bob", vec, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(kept) != 1 {
		t.Errorf("bob's point should survive alice's delete, got %d results", len(kept))
	}
}
