package keyword

import (
	"context"
	"path/filepath"
	"testing"
)

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()
	ctx := context.Background()

	if err := idx.Index(ctx, "store:s1#0", "Bean There", "Bean There is a cafe known for chai latte and almond croissants."); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Index(ctx, "store:s2#0", "Tool Depot", "Tool Depot sells hammers and drills."); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "chai", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "store:s1#0" {
		t.Fatalf("expected store:s1#0 for chai, got %+v", results)
	}

	// Title-only match.
	results, err = idx.Search(ctx, "depot", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].ID != "store:s2#0" {
		t.Errorf("expected title match, got %+v", results)
	}

	n, err := idx.DocCount()
	if err != nil || n != 2 {
		t.Errorf("DocCount = %d, %v", n, err)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()
	_ = idx.Index(ctx, "c1", "", "Seasonal cortado with oat milk")

	exact, _ := idx.Search(ctx, "cortada", 10, nil)
	if len(exact) != 0 {
		t.Errorf("exact search should miss a typo, got %+v", exact)
	}
	fuzzy, err := idx.Search(ctx, "cortada", 10, &SearchOptions{Fuzziness: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(fuzzy) != 1 {
		t.Errorf("fuzzy search should find cortado, got %+v", fuzzy)
	}
}

func TestBleveIndex_DeleteAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	ctx := context.Background()

	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Index(ctx, "a", "", "espresso bar")
	_ = idx.Index(ctx, "b", "", "espresso tonic")
	if err := idx.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	results, err := reopened.Search(ctx, "espresso", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("expected only b after delete and reopen, got %+v", results)
	}
	if results, _ := reopened.Search(ctx, "espresso", 0, nil); results != nil {
		t.Error("limit 0 should return nil")
	}
}

func TestBleveIndex_TitleBoost(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()
	_ = idx.Index(ctx, "body", "Daily specials", "Ask about the matcha of the day and the matcha cookies.")
	_ = idx.Index(ctx, "title", "Matcha", "Ceremonial grade, whisked to order.")

	results, err := idx.Search(ctx, "matcha", 10, &SearchOptions{TitleBoost: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "title" {
		t.Errorf("boosted title match should rank first, got %+v", results)
	}
}
