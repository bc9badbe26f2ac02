package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/testutil"
)

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	database := testutil.NewTestDB(t)
	uow := testutil.NewTestUoW(database)
	ctx := context.Background()

	grid := testutil.NewTestGrid("user-1", "Committed")
	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return NewSQLiteGridRepo(tx).Upsert(ctx, grid)
	})
	require.NoError(t, err)

	fetched, err := NewSQLiteGridRepo(database).GetByID(ctx, grid.ID)
	require.NoError(t, err)
	assert.Equal(t, "Committed", fetched.Name)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	database := testutil.NewTestDB(t)
	uow := testutil.NewTestUoW(database)
	ctx := context.Background()

	boom := errors.New("boom")
	grid := testutil.NewTestGrid("user-1", "Rolled back")
	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := NewSQLiteGridRepo(tx).Upsert(ctx, grid); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewSQLiteGridRepo(database).GetByID(ctx, grid.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
