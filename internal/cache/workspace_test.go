package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/testutil"
)

func TestWorkspace_SetOrder_MirrorsOntoOwningEntity(t *testing.T) {
	ws := NewWorkspace("user-1")
	grid := testutil.NewTestGrid("user-1", "Life")
	cont := testutil.NewTestContainer(grid.ID, "Tasks")
	ws.Grids[grid.ID] = grid
	ws.Containers[cont.ID] = cont

	ws.SetOrder(cont.Ref(), []string{"occ-1", "occ-2"})

	assert.Equal(t, []string{"occ-1", "occ-2"}, ws.Order(cont.Ref()))
	assert.Equal(t, []string{"occ-1", "occ-2"}, cont.OccurrenceOrder)
	assert.Empty(t, grid.OccurrenceOrder)
}

func TestWorkspace_GridOf(t *testing.T) {
	ws := NewWorkspace("user-1")
	grid := testutil.NewTestGrid("user-1", "Life")
	cont := testutil.NewTestContainer(grid.ID, "Tasks")
	inst := testutil.NewTestInstance(grid.ID, "Buy milk")
	ws.Grids[grid.ID] = grid
	ws.Containers[cont.ID] = cont
	ws.Instances[inst.ID] = inst

	for _, tc := range []struct {
		kind domain.EntityKind
		id   string
	}{
		{domain.KindGrid, grid.ID},
		{domain.KindContainer, cont.ID},
		{domain.KindInstance, inst.ID},
	} {
		gid, err := ws.GridOf(tc.kind, tc.id)
		require.NoError(t, err)
		assert.Equal(t, grid.ID, gid)
	}

	_, err := ws.GridOf(domain.KindPanel, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWorkspace_SnapshotRestore_RevertsMutations(t *testing.T) {
	ws := NewWorkspace("user-1")
	grid := testutil.NewTestGrid("user-1", "Life")
	cont := testutil.NewTestContainer(grid.ID, "Tasks")
	occ := testutil.NewTestOccurrence(domain.KindInstance, "inst-1", cont.Ref(),
		testutil.WithFieldValue("field-1", domain.FieldValue{Value: float64(3)}))
	ws.Grids[grid.ID] = grid
	ws.Containers[cont.ID] = cont
	ws.Occurrences[occ.ID] = occ
	ws.SetOrder(cont.Ref(), []string{occ.ID})

	m := ws.Snapshot()

	ws.Occurrences[occ.ID].Fields["field-1"] = domain.FieldValue{Value: float64(99)}
	delete(ws.Containers, cont.ID)
	ws.SetOrder(cont.Ref(), nil)
	ws.Occurrences["stray"] = testutil.NewTestOccurrence(domain.KindInstance, "inst-2", cont.Ref())

	ws.Restore(m)

	require.Contains(t, ws.Containers, cont.ID)
	assert.NotContains(t, ws.Occurrences, "stray")
	assert.Equal(t, []string{occ.ID}, ws.Order(cont.Ref()))
	n, ok := ws.Occurrences[occ.ID].Fields["field-1"].Number()
	require.True(t, ok)
	assert.Equal(t, float64(3), n)
}

func TestWorkspace_Snapshot_DoesNotAliasLiveState(t *testing.T) {
	ws := NewWorkspace("user-1")
	cont := testutil.NewTestContainer("grid-1", "Tasks")
	ws.Containers[cont.ID] = cont
	ws.SetOrder(cont.Ref(), []string{"occ-1"})

	m := ws.Snapshot()
	ws.SetOrder(cont.Ref(), []string{"occ-1", "occ-2"})
	ws.Restore(m)

	assert.Equal(t, []string{"occ-1"}, ws.Order(cont.Ref()))
	assert.Equal(t, []string{"occ-1"}, ws.Containers[cont.ID].OccurrenceOrder)
}
