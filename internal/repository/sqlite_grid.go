package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
)

const gridColumns = `id, owner_id, name, attrs, occurrence_order, created_at, updated_at`

// SQLiteGridRepo implements GridRepo using a SQLite database.
type SQLiteGridRepo struct {
	db db.DBTX
}

// NewSQLiteGridRepo creates a new SQLiteGridRepo.
func NewSQLiteGridRepo(conn db.DBTX) *SQLiteGridRepo {
	return &SQLiteGridRepo{db: conn}
}

func (r *SQLiteGridRepo) Upsert(ctx context.Context, g *domain.Grid) error {
	attrs, err := jsonText(g.Attrs)
	if err != nil {
		return fmt.Errorf("encoding grid attrs: %w", err)
	}
	order, err := jsonText(g.OccurrenceOrder)
	if err != nil {
		return fmt.Errorf("encoding grid occurrence order: %w", err)
	}
	query := `INSERT INTO grids (id, owner_id, name, attrs, occurrence_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			attrs = excluded.attrs,
			occurrence_order = excluded.occurrence_order,
			updated_at = excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query,
		g.ID,
		g.OwnerID,
		g.Name,
		attrs,
		order,
		g.CreatedAt.Format(time.RFC3339),
		g.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting grid: %w", err)
	}
	return nil
}

func (r *SQLiteGridRepo) GetByID(ctx context.Context, id string) (*domain.Grid, error) {
	query := `SELECT ` + gridColumns + ` FROM grids WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanGrid(row)
}

func (r *SQLiteGridRepo) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Grid, error) {
	query := `SELECT ` + gridColumns + ` FROM grids WHERE owner_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing grids by owner: %w", err)
	}
	defer rows.Close()

	var grids []*domain.Grid
	for rows.Next() {
		g, err := scanGrid(rows)
		if err != nil {
			return nil, err
		}
		grids = append(grids, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grids: %w", err)
	}
	return grids, nil
}

// ListAll returns every grid regardless of owner. The offline integrity
// checker scans the whole store.
func (r *SQLiteGridRepo) ListAll(ctx context.Context) ([]*domain.Grid, error) {
	query := `SELECT ` + gridColumns + ` FROM grids ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing grids: %w", err)
	}
	defer rows.Close()

	var grids []*domain.Grid
	for rows.Next() {
		g, err := scanGrid(rows)
		if err != nil {
			return nil, err
		}
		grids = append(grids, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grids: %w", err)
	}
	return grids, nil
}

func (r *SQLiteGridRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grids WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting grid: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrid(row rowScanner) (*domain.Grid, error) {
	var g domain.Grid
	var attrsStr, orderStr, createdAtStr, updatedAtStr string

	err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &attrsStr, &orderStr, &createdAtStr, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("grid: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning grid: %w", err)
	}

	if err := fromJSONText(attrsStr, &g.Attrs); err != nil {
		return nil, fmt.Errorf("grid attrs: %w", err)
	}
	if err := fromJSONText(orderStr, &g.OccurrenceOrder); err != nil {
		return nil, fmt.Errorf("grid occurrence order: %w", err)
	}
	if g.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing grid created_at: %w", err)
	}
	if g.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing grid updated_at: %w", err)
	}
	return &g, nil
}
