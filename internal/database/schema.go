package database

import (
	"context"
	"fmt"
	"log/slog"
)

// snapshotTables is the DDL of a snapshot, in creation order
var snapshotTables = []struct {
	name string
	ddl  string
}{
	{"meta", `CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`},
	{"packages", `CREATE TABLE IF NOT EXISTS packages (
    name TEXT PRIMARY KEY,
    size INTEGER NOT NULL,
    entry_count INTEGER NOT NULL
)`},
	{"package_entries", `CREATE TABLE IF NOT EXISTS package_entries (
    package TEXT NOT NULL REFERENCES packages(name) ON DELETE CASCADE,
    entry_index INTEGER NOT NULL,
    original_offset INTEGER NOT NULL,
    start_offset INTEGER NOT NULL,
    span INTEGER NOT NULL,
    bundle TEXT NOT NULL,
    PRIMARY KEY (package, entry_index)
)`},
	{"containers", `CREATE TABLE IF NOT EXISTS containers (
    file TEXT PRIMARY KEY,
    indexed_offsets INTEGER NOT NULL
)`},
	{"resources", `CREATE TABLE IF NOT EXISTS resources (
    file_id TEXT PRIMARY KEY,
    type_id TEXT NOT NULL,
    package TEXT NOT NULL,
    data_offset INTEGER NOT NULL,
    data_size INTEGER NOT NULL
)`},
}

// CreateSchema creates the snapshot tables in a single transaction
func (d *Database) CreateSchema(ctx context.Context) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range snapshotTables {
		if _, err := tx.ExecContext(ctx, table.ddl); err != nil {
			return fmt.Errorf("creating table %s: %w", table.name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS resources_package ON resources(package)`); err != nil {
		return fmt.Errorf("creating resources index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	slog.Debug("Created snapshot schema", "tables", len(snapshotTables))
	return nil
}

// Tables lists the snapshot table names
func Tables() []string {
	names := make([]string, len(snapshotTables))
	for i, t := range snapshotTables {
		names[i] = t.name
	}
	return names
}
