package testutil

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/alexanderramin/gridboard/internal/db"
)

// FailOnNthExec wraps a DBTX and injects an error on the Nth ExecContext
// call. This enables rollback tests by simulating storage failures at
// precise points in multi-write operations.
//
// ExecContext calls are counted starting at 1. QueryContext and
// QueryRowContext are not counted (reads pass through normally).
type FailOnNthExec struct {
	db.DBTX
	count  atomic.Int32
	FailOn int32
	Err    error
}

func NewFailOnNthExec(conn db.DBTX, failOn int32, err error) *FailOnNthExec {
	return &FailOnNthExec{DBTX: conn, FailOn: failOn, Err: err}
}

func (f *FailOnNthExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	n := f.count.Add(1)
	if n == f.FailOn {
		return nil, f.Err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}

// FailOnNthExecUoW wraps a UnitOfWork so the DBTX handed to each callback
// fails on the Nth ExecContext, for mid-transaction rollback tests.
type FailOnNthExecUoW struct {
	Inner  db.UnitOfWork
	FailOn int32
	Err    error
}

func (u *FailOnNthExecUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	return u.Inner.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, NewFailOnNthExec(tx, u.FailOn, u.Err))
	})
}
