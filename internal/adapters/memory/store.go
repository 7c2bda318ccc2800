// Package memory provides a volatile EntityStore backed by a process-local
// map. It is safe for concurrent access and best suited for tests and demo
// servers without a redis instance.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hollaugo/apphost/pkg/domain"
)

// Store implements ports.EntityStore in memory.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*domain.Entity
	// idempotency reservations: (owner, key) -> entity id
	reserved map[idemKey]string
}

type idemKey struct {
	owner string
	key   string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		entities: make(map[string]*domain.Entity),
		reserved: make(map[idemKey]string),
	}
}

// Upsert creates an entity, or returns the original when the idempotency key
// was already used by this owner.
func (s *Store) Upsert(ctx context.Context, owner, idempotencyKey, kind string, data map[string]any) (*domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idempotencyKey != "" {
		if id, ok := s.reserved[idemKey{owner, idempotencyKey}]; ok {
			if existing, ok := s.entities[id]; ok {
				return clone(existing), nil
			}
		}
	}

	now := time.Now().UTC()
	entity := &domain.Entity{
		ID:        uuid.NewString(),
		Owner:     owner,
		Kind:      kind,
		Data:      cloneData(data),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.entities[entity.ID] = entity
	if idempotencyKey != "" {
		s.reserved[idemKey{owner, idempotencyKey}] = entity.ID
	}
	return clone(entity), nil
}

// Get returns the owner's entity by id.
func (s *Store) Get(ctx context.Context, owner, id string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entities[id]
	if !ok || entity.Owner != owner {
		return nil, domain.ErrEntityNotFound
	}
	return clone(entity), nil
}

// List returns the owner's entities of the given kind, newest first.
func (s *Store) List(ctx context.Context, owner, kind string, limit int) ([]*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Entity
	for _, entity := range s.entities {
		if entity.Owner != owner {
			continue
		}
		if kind != "" && entity.Kind != kind {
			continue
		}
		out = append(out, clone(entity))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update merges data into the entity document.
func (s *Store) Update(ctx context.Context, owner, id string, data map[string]any) (*domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[id]
	if !ok || entity.Owner != owner {
		return nil, domain.ErrEntityNotFound
	}
	if entity.Data == nil {
		entity.Data = make(map[string]any)
	}
	for k, v := range data {
		entity.Data[k] = v
	}
	entity.UpdatedAt = time.Now().UTC()
	return clone(entity), nil
}

// Delete removes the entity.
func (s *Store) Delete(ctx context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[id]
	if !ok || entity.Owner != owner {
		return domain.ErrEntityNotFound
	}
	delete(s.entities, id)
	return nil
}

func clone(e *domain.Entity) *domain.Entity {
	c := *e
	c.Data = cloneData(e.Data)
	return &c
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
