package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
)

const fieldColumns = `id, grid_id, name, mode, options, metric, created_at, updated_at`

// SQLiteFieldRepo implements FieldRepo using a SQLite database.
type SQLiteFieldRepo struct {
	db db.DBTX
}

// NewSQLiteFieldRepo creates a new SQLiteFieldRepo.
func NewSQLiteFieldRepo(conn db.DBTX) *SQLiteFieldRepo {
	return &SQLiteFieldRepo{db: conn}
}

func (r *SQLiteFieldRepo) Upsert(ctx context.Context, f *domain.Field) error {
	options, err := jsonText(f.Options)
	if err != nil {
		return fmt.Errorf("encoding field options: %w", err)
	}
	var metric interface{}
	if f.Metric != nil {
		m, err := jsonText(f.Metric)
		if err != nil {
			return fmt.Errorf("encoding field metric: %w", err)
		}
		metric = m
	}
	query := `INSERT INTO fields (id, grid_id, name, mode, options, metric, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			grid_id = excluded.grid_id,
			name = excluded.name,
			mode = excluded.mode,
			options = excluded.options,
			metric = excluded.metric,
			updated_at = excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query,
		f.ID,
		f.GridID,
		f.Name,
		string(f.Mode),
		options,
		metric,
		f.CreatedAt.Format(time.RFC3339),
		f.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting field: %w", err)
	}
	return nil
}

func (r *SQLiteFieldRepo) GetByID(ctx context.Context, id string) (*domain.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanField(row)
}

func (r *SQLiteFieldRepo) ListByGrid(ctx context.Context, gridID string) ([]*domain.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields WHERE grid_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, gridID)
	if err != nil {
		return nil, fmt.Errorf("listing fields by grid: %w", err)
	}
	defer rows.Close()

	var fields []*domain.Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fields: %w", err)
	}
	return fields, nil
}

func (r *SQLiteFieldRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM fields WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting field: %w", err)
	}
	return nil
}

func scanField(row rowScanner) (*domain.Field, error) {
	var f domain.Field
	var modeStr, optionsStr, createdAtStr, updatedAtStr string
	var metricStr sql.NullString

	err := row.Scan(&f.ID, &f.GridID, &f.Name, &modeStr, &optionsStr, &metricStr, &createdAtStr, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("field: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning field: %w", err)
	}

	f.Mode = domain.FieldMode(modeStr)
	if err := fromJSONText(optionsStr, &f.Options); err != nil {
		return nil, fmt.Errorf("field options: %w", err)
	}
	if metricStr.Valid && metricStr.String != "" {
		f.Metric = &domain.Metric{}
		if err := fromJSONText(metricStr.String, f.Metric); err != nil {
			return nil, fmt.Errorf("field metric: %w", err)
		}
	}
	if f.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing field created_at: %w", err)
	}
	if f.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing field updated_at: %w", err)
	}
	return &f, nil
}
