package recipe

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore keeps recipes in process memory, in insertion order.
type MemoryStore struct {
	mu       sync.RWMutex
	recipes  []CrawlRecipe
	activeID string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recipes := make([]CrawlRecipe, len(m.recipes))
	for i, r := range m.recipes {
		recipes[i] = r.Clone()
	}
	return Snapshot{Recipes: recipes, ActiveID: m.activeID}, nil
}

func (m *MemoryStore) Put(_ context.Context, r CrawlRecipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r = r.Clone()
	if i := m.index(r.ID); i >= 0 {
		m.recipes[i] = r
		return nil
	}
	m.recipes = append(m.recipes, r)
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.recipes = slices.Delete(m.recipes, i, i+1)
	if m.activeID == id {
		m.activeID = ""
	}
	return nil
}

func (m *MemoryStore) SetActive(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" && m.index(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.activeID = id
	return nil
}

func (m *MemoryStore) index(id string) int {
	return slices.IndexFunc(m.recipes, func(r CrawlRecipe) bool { return r.ID == id })
}
