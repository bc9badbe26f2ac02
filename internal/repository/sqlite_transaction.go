package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
)

const transactionColumns = `id, grid_id, user_id, seq, state, operations, created_at, undone_at, undone_by`

// SQLiteTransactionRepo implements TransactionRepo using a SQLite database.
type SQLiteTransactionRepo struct {
	db db.DBTX
}

// NewSQLiteTransactionRepo creates a new SQLiteTransactionRepo.
func NewSQLiteTransactionRepo(conn db.DBTX) *SQLiteTransactionRepo {
	return &SQLiteTransactionRepo{db: conn}
}

func (r *SQLiteTransactionRepo) Upsert(ctx context.Context, t *domain.Transaction) error {
	ops, err := jsonText(t.Operations)
	if err != nil {
		return fmt.Errorf("encoding transaction operations: %w", err)
	}
	query := `INSERT INTO transactions (id, grid_id, user_id, seq, state, operations, created_at, undone_at, undone_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			operations = excluded.operations,
			undone_at = excluded.undone_at,
			undone_by = excluded.undone_by`
	_, err = r.db.ExecContext(ctx, query,
		t.ID,
		t.GridID,
		t.UserID,
		t.Seq,
		string(t.State),
		ops,
		t.CreatedAt.Format(time.RFC3339),
		nullableTimeToString(t.UndoneAt),
		t.UndoneBy,
	)
	if err != nil {
		return fmt.Errorf("upserting transaction: %w", err)
	}
	return nil
}

func (r *SQLiteTransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanTransaction(row)
}

func (r *SQLiteTransactionRepo) ListByGrid(ctx context.Context, gridID string, includeUndone bool) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE grid_id = ?`
	if !includeUndone {
		query += ` AND state IN ('applied','redone')`
	}
	query += ` ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, gridID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions by grid: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return txs, nil
}

// LatestUndoable returns the applied or redone transaction with the
// highest sequence for the grid. Under strict LIFO the undone
// transactions form a contiguous top segment, so this is the undo
// stack's top.
func (r *SQLiteTransactionRepo) LatestUndoable(ctx context.Context, gridID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE grid_id = ? AND state IN ('applied','redone')
		ORDER BY seq DESC LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, gridID)
	return scanTransaction(row)
}

// LatestUndone returns the undone transaction with the lowest sequence
// for the grid — the most recently undone one, and the only legal redo.
func (r *SQLiteTransactionRepo) LatestUndone(ctx context.Context, gridID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE grid_id = ? AND state = 'undone'
		ORDER BY seq ASC LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, gridID)
	return scanTransaction(row)
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var stateStr, opsStr, createdAtStr string
	var undoneAtStr sql.NullString

	err := row.Scan(&t.ID, &t.GridID, &t.UserID, &t.Seq, &stateStr, &opsStr,
		&createdAtStr, &undoneAtStr, &t.UndoneBy)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("transaction: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning transaction: %w", err)
	}

	t.State = domain.TxState(stateStr)
	if err := fromJSONText(opsStr, &t.Operations); err != nil {
		return nil, fmt.Errorf("transaction operations: %w", err)
	}
	t.UndoneAt = parseNullableTime(undoneAtStr)
	if t.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing transaction created_at: %w", err)
	}
	return &t, nil
}
