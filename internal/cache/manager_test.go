package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/repository"
	"github.com/alexanderramin/gridboard/internal/testutil"
)

func seedUserBoard(t *testing.T, repos *repository.Repos, userID string) (*domain.Grid, *domain.Container, *domain.Occurrence) {
	t.Helper()
	ctx := context.Background()

	grid := testutil.NewTestGrid(userID, "Life")
	cont := testutil.NewTestContainer(grid.ID, "Tasks")
	inst := testutil.NewTestInstance(grid.ID, "Buy milk")
	occ := testutil.NewTestOccurrence(domain.KindInstance, inst.ID, cont.Ref())
	cont.OccurrenceOrder = []string{occ.ID}

	require.NoError(t, repos.Grids.Upsert(ctx, grid))
	require.NoError(t, repos.Containers.Upsert(ctx, cont))
	require.NoError(t, repos.Instances.Upsert(ctx, inst))
	require.NoError(t, repos.Occurrences.Upsert(ctx, occ))
	return grid, cont, occ
}

func TestManager_Acquire_PopulatesFromStorage(t *testing.T) {
	database := testutil.NewTestDB(t)
	repos := repository.NewRepos(database)
	manager := NewManager(repos, nil)
	ctx := context.Background()

	grid, cont, occ := seedUserBoard(t, repos, "user-1")

	ws, err := manager.Acquire(ctx, "user-1")
	require.NoError(t, err)
	defer manager.Release("user-1")

	assert.Contains(t, ws.Grids, grid.ID)
	assert.Contains(t, ws.Containers, cont.ID)
	assert.Contains(t, ws.Occurrences, occ.ID)
	assert.Equal(t, []string{occ.ID}, ws.Order(cont.Ref()))
}

func TestManager_Acquire_SharesOneWorkspacePerUser(t *testing.T) {
	database := testutil.NewTestDB(t)
	repos := repository.NewRepos(database)
	manager := NewManager(repos, nil)
	ctx := context.Background()

	seedUserBoard(t, repos, "user-1")

	ws1, err := manager.Acquire(ctx, "user-1")
	require.NoError(t, err)
	ws2, err := manager.Acquire(ctx, "user-1")
	require.NoError(t, err)
	assert.Same(t, ws1, ws2)

	manager.Release("user-1")
	manager.Release("user-1")
}

func TestManager_Release_EvictsOnLastReference(t *testing.T) {
	database := testutil.NewTestDB(t)
	repos := repository.NewRepos(database)
	manager := NewManager(repos, nil)
	ctx := context.Background()

	_, cont, _ := seedUserBoard(t, repos, "user-1")

	ws, err := manager.Acquire(ctx, "user-1")
	require.NoError(t, err)
	_, err = manager.Acquire(ctx, "user-1")
	require.NoError(t, err)

	// An in-memory-only mutation survives while any connection remains.
	require.NoError(t, ws.With(func() error {
		ws.SetOrder(cont.Ref(), nil)
		return nil
	}))

	manager.Release("user-1")
	again, err := manager.Acquire(ctx, "user-1")
	require.NoError(t, err)
	assert.Same(t, ws, again)
	manager.Release("user-1")

	// Last Release evicts; the next Acquire rebuilds from storage and the
	// unpersisted mutation is gone.
	manager.Release("user-1")
	fresh, err := manager.Acquire(ctx, "user-1")
	require.NoError(t, err)
	defer manager.Release("user-1")
	assert.NotSame(t, ws, fresh)
	assert.Len(t, fresh.Order(cont.Ref()), 1)
}

func TestManager_Acquire_IsolatesUsers(t *testing.T) {
	database := testutil.NewTestDB(t)
	repos := repository.NewRepos(database)
	manager := NewManager(repos, nil)
	ctx := context.Background()

	gridA, _, _ := seedUserBoard(t, repos, "alice")
	gridB, _, _ := seedUserBoard(t, repos, "bob")

	wsA, err := manager.Acquire(ctx, "alice")
	require.NoError(t, err)
	defer manager.Release("alice")
	wsB, err := manager.Acquire(ctx, "bob")
	require.NoError(t, err)
	defer manager.Release("bob")

	assert.Contains(t, wsA.Grids, gridA.ID)
	assert.NotContains(t, wsA.Grids, gridB.ID)
	assert.Contains(t, wsB.Grids, gridB.ID)
}
