package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/testutil"
)

func newTestTx(gridID string, seq int, state domain.TxState, ops ...domain.Operation) *domain.Transaction {
	return &domain.Transaction{
		ID:         uuid.New().String(),
		GridID:     gridID,
		UserID:     "user-1",
		Seq:        seq,
		State:      state,
		Operations: ops,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestTransactionRepo_UpsertAndGetByID_RoundTripsOperations(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteTransactionRepo(database)
	ctx := context.Background()

	parent := domain.ParentRef{Kind: domain.KindContainer, ID: "cont-1"}
	val := domain.FieldValue{Value: float64(5), Flow: domain.FlowOut}
	tx := newTestTx("grid-1", 1, domain.TxApplied,
		&domain.OccurrenceListOp{
			Action:       domain.ListAdd,
			OccurrenceID: "occ-1",
			To:           &parent,
			Index:        2,
		},
		&domain.MeasureOp{
			OccurrenceID: "occ-1",
			FieldID:      "field-1",
			Value:        &val,
		},
	)
	require.NoError(t, repo.Upsert(ctx, tx))

	fetched, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.Seq)
	assert.Equal(t, domain.TxApplied, fetched.State)
	require.Len(t, fetched.Operations, 2)

	listOp, ok := fetched.Operations[0].(*domain.OccurrenceListOp)
	require.True(t, ok)
	assert.Equal(t, domain.ListAdd, listOp.Action)
	assert.Equal(t, "occ-1", listOp.OccurrenceID)
	require.NotNil(t, listOp.To)
	assert.Equal(t, parent, *listOp.To)

	measureOp, ok := fetched.Operations[1].(*domain.MeasureOp)
	require.True(t, ok)
	require.NotNil(t, measureOp.Value)
	assert.Equal(t, domain.FlowOut, measureOp.Value.Flow)
}

func TestTransactionRepo_Upsert_UpdatesStateAndUndoMetadata(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteTransactionRepo(database)
	ctx := context.Background()

	tx := newTestTx("grid-1", 1, domain.TxApplied)
	require.NoError(t, repo.Upsert(ctx, tx))

	undoneAt := time.Now().UTC().Truncate(time.Second)
	tx.State = domain.TxUndone
	tx.UndoneAt = &undoneAt
	tx.UndoneBy = "user-2"
	require.NoError(t, repo.Upsert(ctx, tx))

	fetched, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxUndone, fetched.State)
	assert.Equal(t, "user-2", fetched.UndoneBy)
	require.NotNil(t, fetched.UndoneAt)
	assert.True(t, fetched.UndoneAt.Equal(undoneAt))
}

func TestTransactionRepo_ListByGrid_ExcludesUndone(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteTransactionRepo(database)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, newTestTx("grid-1", 1, domain.TxApplied)))
	require.NoError(t, repo.Upsert(ctx, newTestTx("grid-1", 2, domain.TxRedone)))
	require.NoError(t, repo.Upsert(ctx, newTestTx("grid-1", 3, domain.TxUndone)))
	require.NoError(t, repo.Upsert(ctx, newTestTx("grid-2", 1, domain.TxApplied)))

	active, err := repo.ListByGrid(ctx, "grid-1", false)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, 1, active[0].Seq)
	assert.Equal(t, 2, active[1].Seq)

	all, err := repo.ListByGrid(ctx, "grid-1", true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTransactionRepo_LatestUndoable(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteTransactionRepo(database)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, newTestTx("grid-1", 1, domain.TxApplied)))
	require.NoError(t, repo.Upsert(ctx, newTestTx("grid-1", 2, domain.TxRedone)))
	require.NoError(t, repo.Upsert(ctx, newTestTx("grid-1", 3, domain.TxUndone)))

	// Seq 3 is already undone; the stack top is the redone seq 2.
	top, err := repo.LatestUndoable(ctx, "grid-1")
	require.NoError(t, err)
	assert.Equal(t, 2, top.Seq)
}

func TestTransactionRepo_LatestUndone_IsLowestUndoneSeq(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteTransactionRepo(database)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, newTestTx("grid-1", 1, domain.TxApplied)))
	require.NoError(t, repo.Upsert(ctx, newTestTx("grid-1", 2, domain.TxUndone)))
	require.NoError(t, repo.Upsert(ctx, newTestTx("grid-1", 3, domain.TxUndone)))

	// Undos run top-down, so the contiguous undone segment {2,3} was
	// undone in the order 3 then 2. Seq 2 is the only legal redo.
	next, err := repo.LatestUndone(ctx, "grid-1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.Seq)
}

func TestTransactionRepo_Latest_NotFoundOnEmptyGrid(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteTransactionRepo(database)
	ctx := context.Background()

	_, err := repo.LatestUndoable(ctx, "empty-grid")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.LatestUndone(ctx, "empty-grid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGridSequenceRepo_NextSeq_StartsAtOne(t *testing.T) {
	database := testutil.NewTestDB(t)
	seqRepo := NewSQLiteGridSequenceRepo(database)
	ctx := context.Background()

	seq1, err := seqRepo.NextSeq(ctx, "grid-1")
	require.NoError(t, err)
	assert.Equal(t, 1, seq1)

	seq2, err := seqRepo.NextSeq(ctx, "grid-1")
	require.NoError(t, err)
	assert.Equal(t, 2, seq2)
}

func TestGridSequenceRepo_NextSeq_BootstrapsFromExistingRows(t *testing.T) {
	database := testutil.NewTestDB(t)
	txRepo := NewSQLiteTransactionRepo(database)
	seqRepo := NewSQLiteGridSequenceRepo(database)
	ctx := context.Background()

	require.NoError(t, txRepo.Upsert(ctx, newTestTx("grid-1", 7, domain.TxApplied)))

	next, err := seqRepo.NextSeq(ctx, "grid-1")
	require.NoError(t, err)
	assert.Equal(t, 8, next)
}

func TestGridSequenceRepo_NextSeq_IndependentPerGrid(t *testing.T) {
	database := testutil.NewTestDB(t)
	seqRepo := NewSQLiteGridSequenceRepo(database)
	ctx := context.Background()

	_, err := seqRepo.NextSeq(ctx, "grid-1")
	require.NoError(t, err)

	seq, err := seqRepo.NextSeq(ctx, "grid-2")
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
}
