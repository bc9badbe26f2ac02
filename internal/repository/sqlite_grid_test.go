package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/testutil"
)

func TestGridRepo_UpsertAndGetByID(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteGridRepo(database)
	ctx := context.Background()

	grid := testutil.NewTestGrid("user-1", "Life", testutil.WithGridAttrs(map[string]any{"color": "blue"}))
	grid.OccurrenceOrder = []string{"occ-1", "occ-2"}
	require.NoError(t, repo.Upsert(ctx, grid))

	fetched, err := repo.GetByID(ctx, grid.ID)
	require.NoError(t, err)
	assert.Equal(t, grid.ID, fetched.ID)
	assert.Equal(t, "user-1", fetched.OwnerID)
	assert.Equal(t, "Life", fetched.Name)
	assert.Equal(t, "blue", fetched.Attrs["color"])
	assert.Equal(t, []string{"occ-1", "occ-2"}, fetched.OccurrenceOrder)
}

func TestGridRepo_Upsert_UpdatesInPlace(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteGridRepo(database)
	ctx := context.Background()

	grid := testutil.NewTestGrid("user-1", "Before")
	require.NoError(t, repo.Upsert(ctx, grid))

	grid.Name = "After"
	grid.OccurrenceOrder = []string{"occ-9"}
	require.NoError(t, repo.Upsert(ctx, grid))

	fetched, err := repo.GetByID(ctx, grid.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", fetched.Name)
	assert.Equal(t, []string{"occ-9"}, fetched.OccurrenceOrder)
}

func TestGridRepo_GetByID_NotFound(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteGridRepo(database)

	_, err := repo.GetByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGridRepo_ListByOwner(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteGridRepo(database)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testutil.NewTestGrid("alice", "A1")))
	require.NoError(t, repo.Upsert(ctx, testutil.NewTestGrid("alice", "A2")))
	require.NoError(t, repo.Upsert(ctx, testutil.NewTestGrid("bob", "B1")))

	grids, err := repo.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, grids, 2)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGridRepo_Delete(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteGridRepo(database)
	ctx := context.Background()

	grid := testutil.NewTestGrid("user-1", "Doomed")
	require.NoError(t, repo.Upsert(ctx, grid))
	require.NoError(t, repo.Delete(ctx, grid.ID))

	_, err := repo.GetByID(ctx, grid.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
