package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all workspace tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS drafts (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		email      TEXT NOT NULL DEFAULT '',
		channel    INTEGER NOT NULL DEFAULT 1,
		res        TEXT NOT NULL DEFAULT '.pkl',
		analyses   TEXT NOT NULL DEFAULT '{}',
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS draft_files (
		remote_key TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		size       INTEGER NOT NULL DEFAULT 0,
		position   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_draft_files_position ON draft_files(position)`,

	`CREATE TABLE IF NOT EXISTS upload_failures (
		name       TEXT PRIMARY KEY,
		path       TEXT NOT NULL DEFAULT '',
		size       INTEGER NOT NULL DEFAULT 0,
		reason     TEXT NOT NULL,
		position   INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS schema_cache (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		body       TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
}{
	{
		table:    "upload_failures",
		column:   "error",
		alterSQL: "ALTER TABLE upload_failures ADD COLUMN error TEXT NOT NULL DEFAULT ''",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
