package storage

import (
	"database/sql"
	"fmt"
)

// ColumnRegistry tracks the set of columns known to exist on the listings
// table so that schema-on-write upserts only issue DDL for genuinely new
// attribute names. The catalog is read once per process lifetime and kept in
// sync as columns are added.
type ColumnRegistry struct {
	db    *sql.DB
	table string

	loaded bool
	known  map[string]struct{}
}

// NewColumnRegistry creates a registry for table. The catalog is loaded
// lazily on first Ensure, or eagerly via Refresh.
func NewColumnRegistry(db *sql.DB, table string) *ColumnRegistry {
	return &ColumnRegistry{
		db:    db,
		table: table,
		known: make(map[string]struct{}),
	}
}

// Refresh re-reads the column catalog from the database.
func (r *ColumnRegistry) Refresh() error {
	rows, err := r.db.Query(`
		SELECT column_name
		FROM information_schema.columns
		WHERE table_name = $1
	`, r.table)
	if err != nil {
		return fmt.Errorf("registry: read catalog: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("registry: scan column: %w", err)
		}
		known[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("registry: read catalog: %w", err)
	}

	r.known = known
	r.loaded = true
	return nil
}

// Ensure guarantees that column exists on the table, creating it as a
// nullable TEXT column when first seen. Column names must already be
// sanitized (see SanitizeColumn).
func (r *ColumnRegistry) Ensure(column string) error {
	if !r.loaded {
		if err := r.Refresh(); err != nil {
			return err
		}
	}
	if _, ok := r.known[column]; ok {
		return nil
	}

	ddl := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS %q TEXT`, r.table, column)
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("registry: add column %s: %w", column, err)
	}
	r.known[column] = struct{}{}
	return nil
}
