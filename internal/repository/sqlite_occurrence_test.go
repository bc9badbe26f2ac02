package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/testutil"
)

func TestOccurrenceRepo_UpsertAndGetByID(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteOccurrenceRepo(database)
	ctx := context.Background()

	parent := domain.ParentRef{Kind: domain.KindContainer, ID: "cont-1"}
	occ := testutil.NewTestOccurrence(domain.KindInstance, "inst-1", parent,
		testutil.WithIteration(domain.Iteration{
			Mode:       domain.IterSpecific,
			TimeValue:  "2026-08-25",
			TimeFilter: domain.FilterDaily,
		}),
		testutil.WithPlacement(2, 3),
		testutil.WithFieldValue("field-reps", domain.FieldValue{Value: float64(12), Flow: domain.FlowIn}),
		testutil.WithLinkedGroup("group-7"),
	)
	require.NoError(t, repo.Upsert(ctx, occ))

	fetched, err := repo.GetByID(ctx, occ.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindInstance, fetched.TargetType)
	assert.Equal(t, "inst-1", fetched.TargetID)
	assert.Equal(t, parent, fetched.Parent)
	assert.Equal(t, domain.IterSpecific, fetched.Iteration.Mode)
	assert.Equal(t, "2026-08-25", fetched.Iteration.TimeValue)
	require.NotNil(t, fetched.Placement)
	assert.Equal(t, 2, fetched.Placement.Row)
	assert.Equal(t, 3, fetched.Placement.Col)
	assert.Equal(t, "group-7", fetched.LinkedGroupID)

	v := fetched.Fields["field-reps"]
	n, ok := v.Number()
	require.True(t, ok)
	assert.Equal(t, float64(12), n)
	assert.Equal(t, domain.FlowIn, v.Flow)
}

func TestOccurrenceRepo_GetByID_NotFound(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteOccurrenceRepo(database)

	_, err := repo.GetByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOccurrenceRepo_NilPlacementStaysNil(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteOccurrenceRepo(database)
	ctx := context.Background()

	parent := domain.ParentRef{Kind: domain.KindGrid, ID: "grid-1"}
	occ := testutil.NewTestOccurrence(domain.KindContainer, "cont-1", parent)
	require.NoError(t, repo.Upsert(ctx, occ))

	fetched, err := repo.GetByID(ctx, occ.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.Placement)
}

func TestOccurrenceRepo_ListByParent_OrderedByCreation(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteOccurrenceRepo(database)
	ctx := context.Background()

	parent := domain.ParentRef{Kind: domain.KindContainer, ID: "cont-1"}
	other := domain.ParentRef{Kind: domain.KindContainer, ID: "cont-2"}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	first := testutil.NewTestOccurrence(domain.KindInstance, "inst-1", parent,
		testutil.WithCreatedAt(base))
	second := testutil.NewTestOccurrence(domain.KindInstance, "inst-2", parent,
		testutil.WithCreatedAt(base.Add(time.Minute)))
	elsewhere := testutil.NewTestOccurrence(domain.KindInstance, "inst-3", other,
		testutil.WithCreatedAt(base.Add(2*time.Minute)))
	require.NoError(t, repo.Upsert(ctx, first))
	require.NoError(t, repo.Upsert(ctx, second))
	require.NoError(t, repo.Upsert(ctx, elsewhere))

	occs, err := repo.ListByParent(ctx, parent)
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, first.ID, occs[0].ID)
	assert.Equal(t, second.ID, occs[1].ID)
}

func TestOccurrenceRepo_ListByTarget(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteOccurrenceRepo(database)
	ctx := context.Background()

	p1 := domain.ParentRef{Kind: domain.KindContainer, ID: "cont-1"}
	p2 := domain.ParentRef{Kind: domain.KindPanel, ID: "panel-1"}
	require.NoError(t, repo.Upsert(ctx, testutil.NewTestOccurrence(domain.KindInstance, "inst-1", p1)))
	require.NoError(t, repo.Upsert(ctx, testutil.NewTestOccurrence(domain.KindInstance, "inst-1", p2)))
	require.NoError(t, repo.Upsert(ctx, testutil.NewTestOccurrence(domain.KindInstance, "inst-2", p1)))

	occs, err := repo.ListByTarget(ctx, domain.KindInstance, "inst-1")
	require.NoError(t, err)
	assert.Len(t, occs, 2)
}

func TestOccurrenceRepo_DeleteByTarget(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteOccurrenceRepo(database)
	ctx := context.Background()

	p1 := domain.ParentRef{Kind: domain.KindContainer, ID: "cont-1"}
	p2 := domain.ParentRef{Kind: domain.KindPanel, ID: "panel-1"}
	require.NoError(t, repo.Upsert(ctx, testutil.NewTestOccurrence(domain.KindInstance, "inst-1", p1)))
	require.NoError(t, repo.Upsert(ctx, testutil.NewTestOccurrence(domain.KindInstance, "inst-1", p2)))
	keep := testutil.NewTestOccurrence(domain.KindInstance, "inst-2", p1)
	require.NoError(t, repo.Upsert(ctx, keep))

	require.NoError(t, repo.DeleteByTarget(ctx, domain.KindInstance, "inst-1"))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep.ID, all[0].ID)
}
