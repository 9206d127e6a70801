package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Get("a")               // a is now most recent
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

type countingEmbedder struct {
	*HashEmbedder
	calls int
	texts int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	c.texts++
	if c.err != nil {
		return nil, c.err
	}
	return c.HashEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts += len(texts)
	if c.err != nil {
		return nil, c.err
	}
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := c.Embed(ctx, "iced latte")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := c.Embed(ctx, "iced latte")
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
	if &first[0] != &second[0] {
		t.Error("expected cached slice to be returned")
	}

	embs, err := c.EmbedBatch(ctx, []string{"iced latte", "hot tea", "croissant"})
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 3 || embs[0] == nil || embs[2] == nil {
		t.Fatalf("unexpected batch result: %v", embs)
	}
	if inner.texts != 3 {
		t.Errorf("only misses should reach inner embedder, texts=%d", inner.texts)
	}
	if c.Dimensions() != 16 {
		t.Errorf("Dimensions = %d", c.Dimensions())
	}
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8), err: errors.New("boom")}
	c := NewCachedEmbedder(inner, 10)
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	inner.err = nil
	if _, err := c.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("failed call should not be cached, calls=%d", inner.calls)
	}
}

func TestCachedEmbedder_BatchDeduplicatesAndCounts(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	embs, err := c.EmbedBatch(ctx, []string{"chai", "mocha", "chai"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.texts != 2 {
		t.Errorf("duplicate texts should be embedded once, texts=%d", inner.texts)
	}
	if &embs[0][0] != &embs[2][0] {
		t.Error("duplicates should share one embedding")
	}

	_, _ = c.Embed(ctx, "mocha")
	st := c.Stats()
	if st.Entries != 2 || st.Hits != 1 || st.Misses != 3 {
		t.Errorf("stats = %+v", st)
	}
}
