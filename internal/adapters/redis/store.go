// Package redis provides an EntityStore backed by Redis, the durable option
// for multi-replica deployments.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/hollaugo/apphost/pkg/domain"
)

// Store implements ports.EntityStore using Redis.
//
// Key layout (all under the configured prefix):
//
//	entity:<id>            JSON document
//	owner:<owner>          ZSET of entity ids scored by creation time
//	idem:<owner>:<key>     idempotency reservation -> entity id
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for entities and their reservations.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "apphost:",
		ttl:    0, // no expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) entityKey(id string) string {
	return s.prefix + "entity:" + id
}

func (s *Store) ownerKey(owner string) string {
	return s.prefix + "owner:" + owner
}

func (s *Store) idemKey(owner, key string) string {
	return s.prefix + "idem:" + owner + ":" + key
}

// Upsert creates an entity. The idempotency reservation is claimed with SETNX
// after the entity document is written, so a lost race leaves no partial
// state: the loser removes its own document and returns the winner's record.
func (s *Store) Upsert(ctx context.Context, owner, idempotencyKey, kind string, data map[string]any) (*domain.Entity, error) {
	now := time.Now().UTC()
	entity := &domain.Entity{
		ID:        uuid.NewString(),
		Owner:     owner,
		Kind:      kind,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if entity.Data == nil {
		entity.Data = map[string]any{}
	}

	if err := s.save(ctx, entity); err != nil {
		return nil, err
	}

	if idempotencyKey == "" {
		return entity, nil
	}

	claimed, err := s.client.SetNX(ctx, s.idemKey(owner, idempotencyKey), entity.ID, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if claimed {
		return entity, nil
	}

	// Someone else holds the reservation: discard ours, return the original.
	if err := s.remove(ctx, entity); err != nil {
		return nil, err
	}
	existingID, err := s.client.Get(ctx, s.idemKey(owner, idempotencyKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve idempotency key: %w", err)
	}
	return s.Get(ctx, owner, existingID)
}

// Get returns the owner's entity by id.
func (s *Store) Get(ctx context.Context, owner, id string) (*domain.Entity, error) {
	val, err := s.client.Get(ctx, s.entityKey(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var entity domain.Entity
	if err := json.Unmarshal([]byte(val), &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	if entity.Owner != owner {
		return nil, domain.ErrEntityNotFound
	}
	return &entity, nil
}

// List returns the owner's entities of the given kind, newest first.
func (s *Store) List(ctx context.Context, owner, kind string, limit int) ([]*domain.Entity, error) {
	ids, err := s.client.ZRevRange(ctx, s.ownerKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	out := make([]*domain.Entity, 0, len(ids))
	for _, id := range ids {
		entity, err := s.Get(ctx, owner, id)
		if err != nil {
			if errors.Is(err, domain.ErrEntityNotFound) {
				// Expired document still indexed; skip.
				continue
			}
			return nil, err
		}
		if kind != "" && entity.Kind != kind {
			continue
		}
		out = append(out, entity)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Update merges data into the entity document.
func (s *Store) Update(ctx context.Context, owner, id string, data map[string]any) (*domain.Entity, error) {
	entity, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	for k, v := range data {
		entity.Data[k] = v
	}
	entity.UpdatedAt = time.Now().UTC()
	if err := s.save(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// Delete removes the entity.
func (s *Store) Delete(ctx context.Context, owner, id string) error {
	entity, err := s.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, entity)
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) save(ctx context.Context, entity *domain.Entity) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.entityKey(entity.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.ownerKey(entity.Owner), backend.Z{
		Score:  float64(entity.CreatedAt.UnixNano()),
		Member: entity.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, entity *domain.Entity) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.entityKey(entity.ID))
	pipe.ZRem(ctx, s.ownerKey(entity.Owner), entity.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}
