package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"empgate/pkg/sentinel"
)

func TestInMemoryEmployeeStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips an employee", func(t *testing.T) {
		store := NewInMemoryEmployeeStore()
		e := newTestEmployee()
		require.NoError(t, store.Save(ctx, e))

		found, err := store.FindByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e, found)
	})

	t.Run("unknown id maps to ErrNotFound", func(t *testing.T) {
		store := NewInMemoryEmployeeStore()
		_, err := store.FindByID(ctx, "ghost")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("returned employees are isolated copies", func(t *testing.T) {
		store := NewInMemoryEmployeeStore()
		require.NoError(t, store.Save(ctx, newTestEmployee()))

		found, err := store.FindByID(ctx, "emp-1")
		require.NoError(t, err)
		found.Name = "tampered"

		again, err := store.FindByID(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, "Dana Smith", again.Name)
	})

	t.Run("save overwrites an existing record", func(t *testing.T) {
		store := NewInMemoryEmployeeStore()
		e := newTestEmployee()
		require.NoError(t, store.Save(ctx, e))

		e.Department = "Finance"
		require.NoError(t, store.Save(ctx, e))

		found, err := store.FindByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "Finance", found.Department)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		store := NewInMemoryEmployeeStore()
		require.NoError(t, store.Save(ctx, newTestEmployee()))
		require.NoError(t, store.Delete(ctx, "emp-1"))

		_, err := store.FindByID(ctx, "emp-1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "emp-1"), sentinel.ErrNotFound)
	})
}

func TestEmployeeClone(t *testing.T) {
	e := newTestEmployee()
	clone := e.Clone()
	clone.Email = "other@example.com"
	assert.Equal(t, "dana@example.com", e.Email)
}
