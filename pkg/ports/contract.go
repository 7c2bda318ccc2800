package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollaugo/apphost/pkg/domain"
)

// RunEntityStoreContract runs a suite of tests verifying that an EntityStore
// implementation adheres to the interface contract, in particular the
// exactly-once guarantee over (owner, idempotencyKey).
func RunEntityStoreContract(t *testing.T, store EntityStore) {
	ctx := context.Background()
	owner := "contract-owner-" + time.Now().Format("20060102150405")

	t.Run("Upsert and Get", func(t *testing.T) {
		created, err := store.Upsert(ctx, owner, "", "task", map[string]any{"subject": "write docs"})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		assert.Equal(t, owner, created.Owner)
		assert.Equal(t, "task", created.Kind)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := store.Get(ctx, owner, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "write docs", got.Data["subject"])
	})

	t.Run("Idempotent Upsert", func(t *testing.T) {
		first, err := store.Upsert(ctx, owner, "abc", "task", map[string]any{"subject": "first"})
		require.NoError(t, err)

		// Same key, different payload: the original wins and no second
		// entity is created.
		second, err := store.Upsert(ctx, owner, "abc", "task", map[string]any{"subject": "second"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "first", second.Data["subject"])

		// A fresh key creates a distinct entity.
		third, err := store.Upsert(ctx, owner, "xyz", "task", map[string]any{"subject": "third"})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, third.ID)
	})

	t.Run("Keys are scoped per owner", func(t *testing.T) {
		mine, err := store.Upsert(ctx, owner, "shared-key", "task", map[string]any{"subject": "mine"})
		require.NoError(t, err)

		theirs, err := store.Upsert(ctx, owner+"-other", "shared-key", "task", map[string]any{"subject": "theirs"})
		require.NoError(t, err)
		assert.NotEqual(t, mine.ID, theirs.ID)
	})

	t.Run("Get is owner scoped", func(t *testing.T) {
		created, err := store.Upsert(ctx, owner, "", "task", map[string]any{"subject": "private"})
		require.NoError(t, err)

		_, err = store.Get(ctx, "someone-else", created.ID)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		created, err := store.Upsert(ctx, owner, "", "task", map[string]any{"subject": "old", "status": "not_started"})
		require.NoError(t, err)

		updated, err := store.Update(ctx, owner, created.ID, map[string]any{"status": "completed"})
		require.NoError(t, err)
		assert.Equal(t, "old", updated.Data["subject"])
		assert.Equal(t, "completed", updated.Data["status"])

		_, err = store.Update(ctx, owner, "missing-id", map[string]any{"status": "completed"})
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		created, err := store.Upsert(ctx, owner, "", "task", map[string]any{"subject": "doomed"})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, owner, created.ID))

		_, err = store.Get(ctx, owner, created.ID)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)

		err = store.Delete(ctx, owner, created.ID)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	})

	t.Run("List", func(t *testing.T) {
		listOwner := owner + "-list"
		for i := 0; i < 3; i++ {
			_, err := store.Upsert(ctx, listOwner, "", "task", map[string]any{"n": i})
			require.NoError(t, err)
		}
		_, err := store.Upsert(ctx, listOwner, "", "note", map[string]any{"n": 99})
		require.NoError(t, err)

		tasks, err := store.List(ctx, listOwner, "task", 50)
		require.NoError(t, err)
		assert.Len(t, tasks, 3)

		all, err := store.List(ctx, listOwner, "", 50)
		require.NoError(t, err)
		assert.Len(t, all, 4)

		capped, err := store.List(ctx, listOwner, "task", 2)
		require.NoError(t, err)
		assert.Len(t, capped, 2)
	})
}
