package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

type entry struct {
	id  string
	vec []float32
}

// MemoryIndex is an in-memory vector index searched by brute-force inner product.
// Entries keep insertion order, and equal scores are returned in that order.
type MemoryIndex struct {
	dims    int
	mu      sync.RWMutex
	entries []entry
	byID    map[string]int
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dims int) (*MemoryIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dims)
	}
	return &MemoryIndex{dims: dims, byID: make(map[string]int)}, nil
}

// Dimensions returns the vector dimension of the index.
func (m *MemoryIndex) Dimensions() int { return m.dims }

func (m *MemoryIndex) check(n int) error {
	if n != m.dims {
		return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, n, m.dims)
	}
	return nil
}

// Add stores vectors under ids. An ID already present has its vector replaced in place.
func (m *MemoryIndex) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("got %d ids for %d vectors", len(ids), len(vectors))
	}
	for _, v := range vectors {
		if err := m.check(len(v)); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		vec := append([]float32(nil), vectors[i]...)
		if p, ok := m.byID[id]; ok {
			m.entries[p].vec = vec
			continue
		}
		m.byID[id] = len(m.entries)
		m.entries = append(m.entries, entry{id: id, vec: vec})
	}
	return nil
}

// Search returns the k entries with the highest inner product against query.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if err := m.check(len(query)); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}

	hits := make([]*VectorResult, 0, len(m.entries))
	for i, e := range m.entries {
		if i&1023 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		hits = append(hits, &VectorResult{ID: e.id, Score: InnerProduct(query, e.vec)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits[:min(k, len(hits))], nil
}

// Remove drops the given IDs. Unknown IDs are ignored.
func (m *MemoryIndex) Remove(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := 0
	for _, id := range ids {
		if _, ok := m.byID[id]; ok {
			delete(m.byID, id)
			drop++
		}
	}
	if drop == 0 {
		return nil
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if _, ok := m.byID[e.id]; ok {
			kept = append(kept, e)
		}
	}
	clear(m.entries[len(kept):])
	m.replace(kept)
	return nil
}

// replace swaps in entries and rebuilds the ID lookup. Callers hold the write lock.
func (m *MemoryIndex) replace(entries []entry) {
	m.entries = entries
	m.byID = make(map[string]int, len(entries))
	for i, e := range entries {
		m.byID[e.id] = i
	}
}

// Contains reports whether id has a vector.
func (m *MemoryIndex) Contains(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[id]
	return ok
}

// Size returns the number of stored vectors.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close releases nothing; the index lives in memory.
func (m *MemoryIndex) Close() error {
	return nil
}
