package ports

import (
	"context"

	"github.com/hollaugo/apphost/pkg/domain"
)

// EntityStore is the durable-store boundary for business entities. The engine
// requires only idempotent upsert and owner-scoped access; everything else
// about persistence is the adapter's concern.
type EntityStore interface {
	// Upsert creates an entity owned by owner. When idempotencyKey is
	// non-empty and an entity was already created under (owner, key), the
	// original record is returned untouched regardless of the new payload,
	// so retried submissions produce exactly one entity. Callers cannot
	// distinguish a create from a dedupe.
	Upsert(ctx context.Context, owner, idempotencyKey, kind string, data map[string]any) (*domain.Entity, error)

	// Get returns the entity with the given id, scoped to owner.
	// Returns domain.ErrEntityNotFound for missing or foreign-owned ids.
	Get(ctx context.Context, owner, id string) (*domain.Entity, error)

	// List returns up to limit entities of the given kind owned by owner,
	// newest first. An empty kind matches everything.
	List(ctx context.Context, owner, kind string, limit int) ([]*domain.Entity, error)

	// Update merges data into the entity's document and bumps UpdatedAt.
	// Returns domain.ErrEntityNotFound for missing or foreign-owned ids.
	Update(ctx context.Context, owner, id string, data map[string]any) (*domain.Entity, error)

	// Delete removes the entity. Returns domain.ErrEntityNotFound for
	// missing or foreign-owned ids.
	Delete(ctx context.Context, owner, id string) error
}
