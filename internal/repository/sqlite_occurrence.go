package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
)

const occurrenceColumns = `id, target_type, target_id, parent_kind, parent_id,
		iteration, placement, fields, linked_group_id, created_at, updated_at`

// SQLiteOccurrenceRepo implements OccurrenceRepo using a SQLite database.
type SQLiteOccurrenceRepo struct {
	db db.DBTX
}

// NewSQLiteOccurrenceRepo creates a new SQLiteOccurrenceRepo.
func NewSQLiteOccurrenceRepo(conn db.DBTX) *SQLiteOccurrenceRepo {
	return &SQLiteOccurrenceRepo{db: conn}
}

func (r *SQLiteOccurrenceRepo) Upsert(ctx context.Context, o *domain.Occurrence) error {
	iteration, err := jsonText(o.Iteration)
	if err != nil {
		return fmt.Errorf("encoding occurrence iteration: %w", err)
	}
	fields, err := jsonText(o.Fields)
	if err != nil {
		return fmt.Errorf("encoding occurrence fields: %w", err)
	}
	var placement interface{}
	if o.Placement != nil {
		p, err := jsonText(o.Placement)
		if err != nil {
			return fmt.Errorf("encoding occurrence placement: %w", err)
		}
		placement = p
	}
	query := `INSERT INTO occurrences (id, target_type, target_id, parent_kind, parent_id,
			iteration, placement, fields, linked_group_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_type = excluded.target_type,
			target_id = excluded.target_id,
			parent_kind = excluded.parent_kind,
			parent_id = excluded.parent_id,
			iteration = excluded.iteration,
			placement = excluded.placement,
			fields = excluded.fields,
			linked_group_id = excluded.linked_group_id,
			updated_at = excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query,
		o.ID,
		string(o.TargetType),
		o.TargetID,
		string(o.Parent.Kind),
		o.Parent.ID,
		iteration,
		placement,
		fields,
		o.LinkedGroupID,
		o.CreatedAt.Format(time.RFC3339),
		o.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting occurrence: %w", err)
	}
	return nil
}

func (r *SQLiteOccurrenceRepo) GetByID(ctx context.Context, id string) (*domain.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM occurrences WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanOccurrence(row)
}

func (r *SQLiteOccurrenceRepo) ListByParent(ctx context.Context, ref domain.ParentRef) ([]*domain.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM occurrences
		WHERE parent_kind = ? AND parent_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("listing occurrences by parent: %w", err)
	}
	defer rows.Close()
	return scanOccurrences(rows)
}

func (r *SQLiteOccurrenceRepo) ListByTarget(ctx context.Context, targetType domain.EntityKind, targetID string) ([]*domain.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM occurrences
		WHERE target_type = ? AND target_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, string(targetType), targetID)
	if err != nil {
		return nil, fmt.Errorf("listing occurrences by target: %w", err)
	}
	defer rows.Close()
	return scanOccurrences(rows)
}

func (r *SQLiteOccurrenceRepo) ListAll(ctx context.Context) ([]*domain.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM occurrences ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing occurrences: %w", err)
	}
	defer rows.Close()
	return scanOccurrences(rows)
}

func (r *SQLiteOccurrenceRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM occurrences WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting occurrence: %w", err)
	}
	return nil
}

func (r *SQLiteOccurrenceRepo) DeleteByTarget(ctx context.Context, targetType domain.EntityKind, targetID string) error {
	query := `DELETE FROM occurrences WHERE target_type = ? AND target_id = ?`
	if _, err := r.db.ExecContext(ctx, query, string(targetType), targetID); err != nil {
		return fmt.Errorf("deleting occurrences by target: %w", err)
	}
	return nil
}

func scanOccurrence(row rowScanner) (*domain.Occurrence, error) {
	var o domain.Occurrence
	var targetTypeStr, parentKindStr string
	var iterationStr, fieldsStr, createdAtStr, updatedAtStr string
	var placementStr sql.NullString

	err := row.Scan(&o.ID, &targetTypeStr, &o.TargetID, &parentKindStr, &o.Parent.ID,
		&iterationStr, &placementStr, &fieldsStr, &o.LinkedGroupID, &createdAtStr, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("occurrence: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning occurrence: %w", err)
	}

	o.TargetType = domain.EntityKind(targetTypeStr)
	o.Parent.Kind = domain.EntityKind(parentKindStr)
	if err := fromJSONText(iterationStr, &o.Iteration); err != nil {
		return nil, fmt.Errorf("occurrence iteration: %w", err)
	}
	if placementStr.Valid && placementStr.String != "" {
		o.Placement = &domain.Placement{}
		if err := fromJSONText(placementStr.String, o.Placement); err != nil {
			return nil, fmt.Errorf("occurrence placement: %w", err)
		}
	}
	if err := fromJSONText(fieldsStr, &o.Fields); err != nil {
		return nil, fmt.Errorf("occurrence fields: %w", err)
	}
	if o.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing occurrence created_at: %w", err)
	}
	if o.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing occurrence updated_at: %w", err)
	}
	return &o, nil
}

func scanOccurrences(rows *sql.Rows) ([]*domain.Occurrence, error) {
	var occs []*domain.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		occs = append(occs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating occurrences: %w", err)
	}
	return occs, nil
}
