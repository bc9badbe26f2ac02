package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
)

const instanceColumns = `id, grid_id, name, attrs, occurrence_order, created_at, updated_at`

// SQLiteInstanceRepo implements InstanceRepo using a SQLite database.
type SQLiteInstanceRepo struct {
	db db.DBTX
}

// NewSQLiteInstanceRepo creates a new SQLiteInstanceRepo.
func NewSQLiteInstanceRepo(conn db.DBTX) *SQLiteInstanceRepo {
	return &SQLiteInstanceRepo{db: conn}
}

func (r *SQLiteInstanceRepo) Upsert(ctx context.Context, e *domain.Instance) error {
	attrs, err := jsonText(e.Attrs)
	if err != nil {
		return fmt.Errorf("encoding instance attrs: %w", err)
	}
	order, err := jsonText(e.OccurrenceOrder)
	if err != nil {
		return fmt.Errorf("encoding instance occurrence order: %w", err)
	}
	query := `INSERT INTO instances (id, grid_id, name, attrs, occurrence_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			grid_id = excluded.grid_id,
			name = excluded.name,
			attrs = excluded.attrs,
			occurrence_order = excluded.occurrence_order,
			updated_at = excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		e.GridID,
		e.Name,
		attrs,
		order,
		e.CreatedAt.Format(time.RFC3339),
		e.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting instance: %w", err)
	}
	return nil
}

func (r *SQLiteInstanceRepo) GetByID(ctx context.Context, id string) (*domain.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanInstance(row)
}

func (r *SQLiteInstanceRepo) ListByGrid(ctx context.Context, gridID string) ([]*domain.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE grid_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, gridID)
	if err != nil {
		return nil, fmt.Errorf("listing instances by grid: %w", err)
	}
	defer rows.Close()

	var items []*domain.Instance
	for rows.Next() {
		e, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating instances: %w", err)
	}
	return items, nil
}

func (r *SQLiteInstanceRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting instance: %w", err)
	}
	return nil
}

func scanInstance(row rowScanner) (*domain.Instance, error) {
	var e domain.Instance
	var attrsStr, orderStr, createdAtStr, updatedAtStr string

	err := row.Scan(&e.ID, &e.GridID, &e.Name, &attrsStr, &orderStr, &createdAtStr, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("instance: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning instance: %w", err)
	}

	if err := fromJSONText(attrsStr, &e.Attrs); err != nil {
		return nil, fmt.Errorf("instance attrs: %w", err)
	}
	if err := fromJSONText(orderStr, &e.OccurrenceOrder); err != nil {
		return nil, fmt.Errorf("instance occurrence order: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing instance created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing instance updated_at: %w", err)
	}
	return &e, nil
}
