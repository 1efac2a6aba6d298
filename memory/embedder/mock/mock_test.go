package mock_test

import (
	"context"
	"math"
	"testing"

	"github.com/mnemolabs/mnemo/memory/embedder/mock"
)

func TestEmbedIsDeterministic(t *testing.T) {
	ctx := context.Background()
	e := mock.New(16)

	a, err := e.Embed(ctx, "same text")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	b, err := e.Embed(ctx, "same text")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("identical text produced different vectors at index %d", i)
		}
	}
}

func TestEmbedDistinguishesTexts(t *testing.T) {
	ctx := context.Background()
	e := mock.New(16)

	a, _ := e.Embed(ctx, "one text")
	b, _ := e.Embed(ctx, "another text")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct texts produced identical vectors")
	}
}

func TestEmbedProducesUnitVector(t *testing.T) {
	ctx := context.Background()
	e := mock.New(32)

	vec, err := e.Embed(ctx, "normalize me")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != e.Dimensions() {
		t.Fatalf("expected %d dimensions, got %d", e.Dimensions(), len(vec))
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-3 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(norm))
	}
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	ctx := context.Background()
	e := mock.New(16)

	if _, err := e.Embed(ctx, "  \n "); err == nil {
		t.Error("expected an error for empty text")
	}
}
