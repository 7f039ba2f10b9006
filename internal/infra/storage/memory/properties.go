package memory

import (
	"context"
	"sort"
	"sync"

	"arrienda/internal/domain/property"
)

// PropertyRepository is an in-memory implementation of property.Repository.
// The directory is seeded at startup from fixtures; a real deployment would
// put this behind the relational catalog.
type PropertyRepository struct {
	mu    sync.RWMutex
	items map[property.ID]*property.Property
}

// NewPropertyRepository builds an empty repository.
func NewPropertyRepository() *PropertyRepository {
	return &PropertyRepository{items: make(map[property.ID]*property.Property)}
}

// ByID returns a property or property.ErrNotFound.
func (r *PropertyRepository) ByID(ctx context.Context, id property.ID) (*property.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, property.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

// List returns every property, newest first.
func (r *PropertyRepository) List(ctx context.Context) ([]*property.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*property.Property, 0, len(r.items))
	for _, p := range r.items {
		clone := *p
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Save stores/updates a property entry.
func (r *PropertyRepository) Save(ctx context.Context, p *property.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *p
	r.items[p.ID] = &clone
	return nil
}
