package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/gridboard/internal/db"
)

// SQLiteGridSequenceRepo allocates grid-scoped transaction sequence
// values atomically using the grid_sequences table.
type SQLiteGridSequenceRepo struct {
	db db.DBTX
}

// NewSQLiteGridSequenceRepo creates a new SQLiteGridSequenceRepo.
func NewSQLiteGridSequenceRepo(conn db.DBTX) *SQLiteGridSequenceRepo {
	return &SQLiteGridSequenceRepo{db: conn}
}

// NextSeq returns the next available transaction sequence for a grid.
// Allocation is atomic and safe under concurrent writers: the single
// UPDATE ... RETURNING both claims and advances the counter, so two
// handlers can never read the same value.
func (r *SQLiteGridSequenceRepo) NextSeq(ctx context.Context, gridID string) (int, error) {
	seedQuery := `INSERT OR IGNORE INTO grid_sequences (grid_id, next_seq)
		SELECT ?, COALESCE(MAX(seq), 0) + 1
		FROM transactions WHERE grid_id = ?`
	if _, err := r.db.ExecContext(ctx, seedQuery, gridID, gridID); err != nil {
		return 0, fmt.Errorf("seeding grid sequence for %s: %w", gridID, err)
	}

	var next int
	allocQuery := `UPDATE grid_sequences
		SET next_seq = next_seq + 1
		WHERE grid_id = ?
		RETURNING next_seq - 1`
	if err := r.db.QueryRowContext(ctx, allocQuery, gridID).Scan(&next); err != nil {
		return 0, fmt.Errorf("allocating next seq for grid %s: %w", gridID, err)
	}

	return next, nil
}
