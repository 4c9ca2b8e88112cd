package recipe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store errors.
var (
	ErrNotFound       = errors.New("recipe not found")
	ErrNoActiveRecipe = errors.New("no active recipe")
)

// Snapshot is the full store state as returned by Get.
type Snapshot struct {
	Recipes  []CrawlRecipe `json:"recipes"`
	ActiveID string        `json:"activeId,omitempty"`
}

// Find returns the recipe with id.
func (s Snapshot) Find(id string) (CrawlRecipe, bool) {
	for _, r := range s.Recipes {
		if r.ID == id {
			return r, true
		}
	}
	return CrawlRecipe{}, false
}

// Store persists recipes and the active recipe id. Implementations give
// last-write-wins semantics; callers mutate through Update.
type Store interface {
	Get(ctx context.Context) (Snapshot, error)
	Put(ctx context.Context, r CrawlRecipe) error
	Remove(ctx context.Context, id string) error
	// SetActive marks id as active; an empty id clears it.
	SetActive(ctx context.Context, id string) error
}

// Update reads recipe id, applies fn to a copy and writes the copy back.
func Update(ctx context.Context, s Store, id string, fn func(*CrawlRecipe) error) (CrawlRecipe, error) {
	snap, err := s.Get(ctx)
	if err != nil {
		return CrawlRecipe{}, fmt.Errorf("read recipes: %w", err)
	}

	current, ok := snap.Find(id)
	if !ok {
		return CrawlRecipe{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := current.Clone()
	if fnErr := fn(&next); fnErr != nil {
		return CrawlRecipe{}, fnErr
	}
	next.ID = current.ID
	next.UpdatedAt = time.Now().UTC()

	if putErr := s.Put(ctx, next); putErr != nil {
		return CrawlRecipe{}, fmt.Errorf("write recipe: %w", putErr)
	}
	return next, nil
}

// Active returns the active recipe.
func Active(ctx context.Context, s Store) (CrawlRecipe, error) {
	snap, err := s.Get(ctx)
	if err != nil {
		return CrawlRecipe{}, fmt.Errorf("read recipes: %w", err)
	}
	if snap.ActiveID == "" {
		return CrawlRecipe{}, ErrNoActiveRecipe
	}
	r, ok := snap.Find(snap.ActiveID)
	if !ok {
		return CrawlRecipe{}, fmt.Errorf("%w: %s", ErrNotFound, snap.ActiveID)
	}
	return r, nil
}
