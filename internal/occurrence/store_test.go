package occurrence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/cache"
	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/occurrence"
	"github.com/alexanderramin/gridboard/internal/repository"
	"github.com/alexanderramin/gridboard/internal/testutil"
)

type storeFixture struct {
	repos *repository.Repos
	store *occurrence.Store
	ws    *cache.Workspace

	grid  *domain.Grid
	tasks *domain.Container
	done  *domain.Container
	milk  *domain.Instance
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	repos := repository.NewRepos(database)
	ctx := context.Background()

	f := &storeFixture{
		repos: repos,
		store: occurrence.NewStore(repos.Occurrences, repos.ParentLists),
		ws:    cache.NewWorkspace("user-1"),
	}
	f.grid = testutil.NewTestGrid("user-1", "Life")
	f.tasks = testutil.NewTestContainer(f.grid.ID, "Tasks")
	f.done = testutil.NewTestContainer(f.grid.ID, "Done")
	f.milk = testutil.NewTestInstance(f.grid.ID, "Buy milk")

	require.NoError(t, repos.Grids.Upsert(ctx, f.grid))
	require.NoError(t, repos.Containers.Upsert(ctx, f.tasks))
	require.NoError(t, repos.Containers.Upsert(ctx, f.done))
	require.NoError(t, repos.Instances.Upsert(ctx, f.milk))

	f.ws.Grids[f.grid.ID] = f.grid
	f.ws.Containers[f.tasks.ID] = f.tasks
	f.ws.Containers[f.done.ID] = f.done
	f.ws.Instances[f.milk.ID] = f.milk
	return f
}

func TestStore_Create_AppendsToParentList(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	occ, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{occ.ID}, f.ws.Order(f.tasks.Ref()))
	assert.Contains(t, f.ws.Occurrences, occ.ID)

	// Both the record and the owning list reached storage.
	persisted, err := f.repos.Occurrences.GetByID(ctx, occ.ID)
	require.NoError(t, err)
	assert.Equal(t, f.tasks.Ref(), persisted.Parent)

	cont, err := f.repos.Containers.GetByID(ctx, f.tasks.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{occ.ID}, cont.OccurrenceOrder)
}

func TestStore_Delete_ReturnsSnapshotAndIndex(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	first, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)
	second, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)

	snapshot, index, err := f.store.Delete(ctx, f.ws, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, snapshot.ID)
	assert.Equal(t, 1, index)
	assert.Equal(t, []string{first.ID}, f.ws.Order(f.tasks.Ref()))

	_, err = f.repos.Occurrences.GetByID(ctx, second.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_Detach_KeepsRecord(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	occ, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)

	index, err := f.store.Detach(ctx, f.ws, occ.ID, f.tasks.Ref())
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Empty(t, f.ws.Order(f.tasks.Ref()))
	assert.Contains(t, f.ws.Occurrences, occ.ID)

	_, err = f.repos.Occurrences.GetByID(ctx, occ.ID)
	assert.NoError(t, err)
}

func TestStore_Move_BetweenContainers(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	occ, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)
	occ.Fields["field-1"] = domain.FieldValue{Value: true}

	fromIndex, err := f.store.Move(ctx, f.ws, occ.ID, f.tasks.Ref(), f.done.Ref(), -1)
	require.NoError(t, err)
	assert.Equal(t, 0, fromIndex)

	assert.Empty(t, f.ws.Order(f.tasks.Ref()))
	assert.Equal(t, []string{occ.ID}, f.ws.Order(f.done.Ref()))
	assert.Equal(t, f.done.Ref(), occ.Parent)

	// Field snapshot travels with the occurrence.
	persisted, err := f.repos.Occurrences.GetByID(ctx, occ.ID)
	require.NoError(t, err)
	assert.Equal(t, f.done.Ref(), persisted.Parent)
	assert.True(t, persisted.Fields["field-1"].Bool())
}

func TestStore_Move_InsertsAtIndexAndReportsSource(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	mk := func(parent domain.ParentRef) *domain.Occurrence {
		occ, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
			parent, domain.Iteration{Mode: domain.IterPersistent}, nil)
		require.NoError(t, err)
		return occ
	}
	a := mk(f.tasks.Ref())
	b := mk(f.tasks.Ref())
	x := mk(f.done.Ref())
	y := mk(f.done.Ref())

	fromIndex, err := f.store.Move(ctx, f.ws, b.ID, f.tasks.Ref(), f.done.Ref(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, fromIndex)
	assert.Equal(t, []string{a.ID}, f.ws.Order(f.tasks.Ref()))
	assert.Equal(t, []string{x.ID, b.ID, y.ID}, f.ws.Order(f.done.Ref()))
}

func TestStore_Copy_SharesLinkedGroupButNotValues(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	src, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)

	dup, err := f.store.Copy(ctx, f.ws, src.ID, f.done.Ref())
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, dup.ID)
	assert.NotEmpty(t, src.LinkedGroupID)
	assert.Equal(t, src.LinkedGroupID, dup.LinkedGroupID)
	assert.Equal(t, []string{dup.ID}, f.ws.Order(f.done.Ref()))

	// Edits after the copy stay on the edited side.
	src.Fields["field-1"] = domain.FieldValue{Value: true}
	assert.False(t, dup.Fields["field-1"].Bool())
}

func TestStore_Reorder_ReplacesOrder(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	a, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)
	b, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)

	require.NoError(t, f.store.Reorder(ctx, f.ws, f.tasks.Ref(), []string{b.ID, a.ID}))
	assert.Equal(t, []string{b.ID, a.ID}, f.ws.Order(f.tasks.Ref()))

	cont, err := f.repos.Containers.GetByID(ctx, f.tasks.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, cont.OccurrenceOrder)
}

func TestStore_Reorder_RejectsMembershipChanges(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	a, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)

	err = f.store.Reorder(ctx, f.ws, f.tasks.Ref(), []string{a.ID, "intruder"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = f.store.Reorder(ctx, f.ws, f.tasks.Ref(), []string{"intruder"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStore_CascadeDeleteTarget_WalksChildrenFirst(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	// The container sits on the grid; two instances sit in the container.
	contOcc, err := f.store.Create(ctx, f.ws, domain.KindContainer, f.tasks.ID,
		f.grid.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)
	childA, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)
	childB, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)

	removed, err := f.store.CascadeDeleteTarget(ctx, f.ws, domain.KindContainer, f.tasks.ID)
	require.NoError(t, err)
	require.Len(t, removed, 3)

	// Children come out before the container's own placement, so undo can
	// restore parents before their children.
	assert.ElementsMatch(t,
		[]string{childA.ID, childB.ID},
		[]string{removed[0].Snapshot.ID, removed[1].Snapshot.ID})
	assert.Equal(t, contOcc.ID, removed[2].Snapshot.ID)

	assert.Empty(t, f.ws.Occurrences)
	assert.Empty(t, f.ws.Order(f.grid.Ref()))
	assert.Empty(t, f.ws.Order(f.tasks.Ref()))

	all, err := f.repos.Occurrences.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_ByParent_SkipsDanglingIDs(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	occ, err := f.store.Create(ctx, f.ws, domain.KindInstance, f.milk.ID,
		f.tasks.Ref(), domain.Iteration{Mode: domain.IterPersistent}, nil)
	require.NoError(t, err)
	f.ws.SetOrder(f.tasks.Ref(), []string{"ghost", occ.ID})

	occs := f.store.ByParent(f.ws, f.tasks.Ref())
	require.Len(t, occs, 1)
	assert.Equal(t, occ.ID, occs[0].ID)
}
