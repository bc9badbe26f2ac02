package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
)

const panelColumns = `id, grid_id, name, attrs, occurrence_order, created_at, updated_at`

// SQLitePanelRepo implements PanelRepo using a SQLite database.
type SQLitePanelRepo struct {
	db db.DBTX
}

// NewSQLitePanelRepo creates a new SQLitePanelRepo.
func NewSQLitePanelRepo(conn db.DBTX) *SQLitePanelRepo {
	return &SQLitePanelRepo{db: conn}
}

func (r *SQLitePanelRepo) Upsert(ctx context.Context, e *domain.Panel) error {
	attrs, err := jsonText(e.Attrs)
	if err != nil {
		return fmt.Errorf("encoding panel attrs: %w", err)
	}
	order, err := jsonText(e.OccurrenceOrder)
	if err != nil {
		return fmt.Errorf("encoding panel occurrence order: %w", err)
	}
	query := `INSERT INTO panels (id, grid_id, name, attrs, occurrence_order, created_at, updated_at)
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
		return fmt.Errorf("upserting panel: %w", err)
	}
	return nil
}

func (r *SQLitePanelRepo) GetByID(ctx context.Context, id string) (*domain.Panel, error) {
	query := `SELECT ` + panelColumns + ` FROM panels WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanPanel(row)
}

func (r *SQLitePanelRepo) ListByGrid(ctx context.Context, gridID string) ([]*domain.Panel, error) {
	query := `SELECT ` + panelColumns + ` FROM panels WHERE grid_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, gridID)
	if err != nil {
		return nil, fmt.Errorf("listing panels by grid: %w", err)
	}
	defer rows.Close()

	var items []*domain.Panel
	for rows.Next() {
		e, err := scanPanel(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating panels: %w", err)
	}
	return items, nil
}

func (r *SQLitePanelRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM panels WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting panel: %w", err)
	}
	return nil
}

func scanPanel(row rowScanner) (*domain.Panel, error) {
	var e domain.Panel
	var attrsStr, orderStr, createdAtStr, updatedAtStr string

	err := row.Scan(&e.ID, &e.GridID, &e.Name, &attrsStr, &orderStr, &createdAtStr, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("panel: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning panel: %w", err)
	}

	if err := fromJSONText(attrsStr, &e.Attrs); err != nil {
		return nil, fmt.Errorf("panel attrs: %w", err)
	}
	if err := fromJSONText(orderStr, &e.OccurrenceOrder); err != nil {
		return nil, fmt.Errorf("panel occurrence order: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing panel created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing panel updated_at: %w", err)
	}
	return &e, nil
}
