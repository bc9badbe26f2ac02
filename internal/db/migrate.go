package db

import (
	"database/sql"
	"fmt"
)

// Migrate runs all schema migrations. Statements are idempotent and the
// full list is re-run on every open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// One table per entity kind, keyed by an application-assigned string id
// stable across export/import. Display attributes and ordered child lists
// are stored as JSON text.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS grids (
		id               TEXT PRIMARY KEY,
		owner_id         TEXT NOT NULL,
		name             TEXT NOT NULL,
		attrs            TEXT NOT NULL DEFAULT '{}',
		occurrence_order TEXT NOT NULL DEFAULT '[]',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_grids_owner ON grids(owner_id)`,

	`CREATE TABLE IF NOT EXISTS panels (
		id               TEXT PRIMARY KEY,
		grid_id          TEXT NOT NULL,
		name             TEXT NOT NULL,
		attrs            TEXT NOT NULL DEFAULT '{}',
		occurrence_order TEXT NOT NULL DEFAULT '[]',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_panels_grid ON panels(grid_id)`,

	`CREATE TABLE IF NOT EXISTS containers (
		id               TEXT PRIMARY KEY,
		grid_id          TEXT NOT NULL,
		name             TEXT NOT NULL,
		attrs            TEXT NOT NULL DEFAULT '{}',
		occurrence_order TEXT NOT NULL DEFAULT '[]',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_containers_grid ON containers(grid_id)`,

	`CREATE TABLE IF NOT EXISTS instances (
		id               TEXT PRIMARY KEY,
		grid_id          TEXT NOT NULL,
		name             TEXT NOT NULL,
		attrs            TEXT NOT NULL DEFAULT '{}',
		occurrence_order TEXT NOT NULL DEFAULT '[]',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_instances_grid ON instances(grid_id)`,

	`CREATE TABLE IF NOT EXISTS fields (
		id         TEXT PRIMARY KEY,
		grid_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		mode       TEXT NOT NULL CHECK(mode IN ('input','derived')),
		options    TEXT NOT NULL DEFAULT '[]',
		metric     TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_fields_grid ON fields(grid_id)`,

	`CREATE TABLE IF NOT EXISTS occurrences (
		id              TEXT PRIMARY KEY,
		target_type     TEXT NOT NULL CHECK(target_type IN ('grid','panel','container','instance')),
		target_id       TEXT NOT NULL,
		parent_kind     TEXT NOT NULL CHECK(parent_kind IN ('grid','panel','container','instance')),
		parent_id       TEXT NOT NULL,
		iteration       TEXT NOT NULL DEFAULT '{}',
		placement       TEXT,
		fields          TEXT NOT NULL DEFAULT '{}',
		linked_group_id TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_occurrences_parent ON occurrences(parent_kind, parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrences_target ON occurrences(target_type, target_id)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id         TEXT PRIMARY KEY,
		grid_id    TEXT NOT NULL,
		user_id    TEXT NOT NULL DEFAULT '',
		seq        INTEGER NOT NULL,
		state      TEXT NOT NULL DEFAULT 'applied'
		           CHECK(state IN ('applied','undone','redone')),
		operations TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		undone_at  TEXT,
		undone_by  TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_grid_seq ON transactions(grid_id, seq)`,

	`CREATE TABLE IF NOT EXISTS grid_sequences (
		grid_id  TEXT PRIMARY KEY,
		next_seq INTEGER NOT NULL CHECK(next_seq > 0)
	)`,
}
