package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/testutil"
)

func TestParentListRepo_SaveOrder_WritesOntoOwningRow(t *testing.T) {
	database := testutil.NewTestDB(t)
	containers := NewSQLiteContainerRepo(database)
	lists := NewSQLiteParentListRepo(database)
	ctx := context.Background()

	cont := testutil.NewTestContainer("grid-1", "Tasks")
	require.NoError(t, containers.Upsert(ctx, cont))

	require.NoError(t, lists.SaveOrder(ctx, cont.Ref(), []string{"occ-2", "occ-1"}))

	fetched, err := containers.GetByID(ctx, cont.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"occ-2", "occ-1"}, fetched.OccurrenceOrder)
	assert.Equal(t, "Tasks", fetched.Name)
}

func TestParentListRepo_SaveOrder_UpsertsMissingParent(t *testing.T) {
	database := testutil.NewTestDB(t)
	containers := NewSQLiteContainerRepo(database)
	lists := NewSQLiteParentListRepo(database)
	ctx := context.Background()

	ref := domain.ParentRef{Kind: domain.KindContainer, ID: "never-created"}
	require.NoError(t, lists.SaveOrder(ctx, ref, []string{"occ-1"}))

	// A placeholder row exists carrying the order; the integrity checker
	// owns flagging the missing parent.
	fetched, err := containers.GetByID(ctx, "never-created")
	require.NoError(t, err)
	assert.Equal(t, []string{"occ-1"}, fetched.OccurrenceOrder)
}

func TestParentListRepo_SaveOrder_GridParent(t *testing.T) {
	database := testutil.NewTestDB(t)
	grids := NewSQLiteGridRepo(database)
	lists := NewSQLiteParentListRepo(database)
	ctx := context.Background()

	grid := testutil.NewTestGrid("user-1", "Life")
	require.NoError(t, grids.Upsert(ctx, grid))
	require.NoError(t, lists.SaveOrder(ctx, grid.Ref(), []string{"occ-a", "occ-b", "occ-c"}))

	fetched, err := grids.GetByID(ctx, grid.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"occ-a", "occ-b", "occ-c"}, fetched.OccurrenceOrder)
}

func TestParentListRepo_SaveOrder_UnknownKind(t *testing.T) {
	database := testutil.NewTestDB(t)
	lists := NewSQLiteParentListRepo(database)

	ref := domain.ParentRef{Kind: "widget", ID: "w-1"}
	err := lists.SaveOrder(context.Background(), ref, []string{"occ-1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
