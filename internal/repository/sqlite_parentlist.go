package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
)

// parentTables maps a parent kind to the table holding its ordered
// occurrence-id list.
var parentTables = map[domain.EntityKind]string{
	domain.KindGrid:      "grids",
	domain.KindPanel:     "panels",
	domain.KindContainer: "containers",
	domain.KindInstance:  "instances",
}

// SQLiteParentListRepo persists a parent's ordered occurrence-id list
// regardless of which entity kind owns it.
type SQLiteParentListRepo struct {
	db db.DBTX
}

// NewSQLiteParentListRepo creates a new SQLiteParentListRepo.
func NewSQLiteParentListRepo(conn db.DBTX) *SQLiteParentListRepo {
	return &SQLiteParentListRepo{db: conn}
}

// SaveOrder writes the ordered occurrence-id list onto the parent's row.
// A missing parent row is upserted with a placeholder name rather than
// failing: runtime ops never throw integrity errors, the offline checker
// owns flagging them.
func (r *SQLiteParentListRepo) SaveOrder(ctx context.Context, ref domain.ParentRef, ids []string) error {
	table, ok := parentTables[ref.Kind]
	if !ok {
		return fmt.Errorf("saving parent list: unknown parent kind %q: %w", ref.Kind, domain.ErrValidation)
	}
	order, err := jsonText(ids)
	if err != nil {
		return fmt.Errorf("encoding parent list: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET occurrence_order = ?, updated_at = ? WHERE id = ?`,
		order, now, ref.ID)
	if err != nil {
		return fmt.Errorf("saving parent list on %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving parent list on %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}

	if ref.Kind == domain.KindGrid {
		_, err = r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO grids (id, owner_id, name, occurrence_order, created_at, updated_at)
			VALUES (?, '', '', ?, ?, ?)`,
			ref.ID, order, now, now)
	} else {
		_, err = r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+table+` (id, grid_id, name, occurrence_order, created_at, updated_at)
			VALUES (?, '', '', ?, ?, ?)`,
			ref.ID, order, now, now)
	}
	if err != nil {
		return fmt.Errorf("upserting missing parent on %s: %w", table, err)
	}
	return nil
}
