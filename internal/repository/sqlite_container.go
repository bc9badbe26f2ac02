package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
)

const containerColumns = `id, grid_id, name, attrs, occurrence_order, created_at, updated_at`

// SQLiteContainerRepo implements ContainerRepo using a SQLite database.
type SQLiteContainerRepo struct {
	db db.DBTX
}

// NewSQLiteContainerRepo creates a new SQLiteContainerRepo.
func NewSQLiteContainerRepo(conn db.DBTX) *SQLiteContainerRepo {
	return &SQLiteContainerRepo{db: conn}
}

func (r *SQLiteContainerRepo) Upsert(ctx context.Context, e *domain.Container) error {
	attrs, err := jsonText(e.Attrs)
	if err != nil {
		return fmt.Errorf("encoding container attrs: %w", err)
	}
	order, err := jsonText(e.OccurrenceOrder)
	if err != nil {
		return fmt.Errorf("encoding container occurrence order: %w", err)
	}
	query := `INSERT INTO containers (id, grid_id, name, attrs, occurrence_order, created_at, updated_at)
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
		return fmt.Errorf("upserting container: %w", err)
	}
	return nil
}

func (r *SQLiteContainerRepo) GetByID(ctx context.Context, id string) (*domain.Container, error) {
	query := `SELECT ` + containerColumns + ` FROM containers WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanContainer(row)
}

func (r *SQLiteContainerRepo) ListByGrid(ctx context.Context, gridID string) ([]*domain.Container, error) {
	query := `SELECT ` + containerColumns + ` FROM containers WHERE grid_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, gridID)
	if err != nil {
		return nil, fmt.Errorf("listing containers by grid: %w", err)
	}
	defer rows.Close()

	var items []*domain.Container
	for rows.Next() {
		e, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating containers: %w", err)
	}
	return items, nil
}

func (r *SQLiteContainerRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM containers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting container: %w", err)
	}
	return nil
}

func scanContainer(row rowScanner) (*domain.Container, error) {
	var e domain.Container
	var attrsStr, orderStr, createdAtStr, updatedAtStr string

	err := row.Scan(&e.ID, &e.GridID, &e.Name, &attrsStr, &orderStr, &createdAtStr, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("container: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning container: %w", err)
	}

	if err := fromJSONText(attrsStr, &e.Attrs); err != nil {
		return nil, fmt.Errorf("container attrs: %w", err)
	}
	if err := fromJSONText(orderStr, &e.OccurrenceOrder); err != nil {
		return nil, fmt.Errorf("container occurrence order: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing container created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing container updated_at: %w", err)
	}
	return &e, nil
}
