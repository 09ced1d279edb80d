package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jchantrell/slimdivers/internal/catalog"
	"github.com/jchantrell/slimdivers/internal/toc"
)

// Snapshot is everything exported into the database
type Snapshot struct {
	DataRoot  string
	Slim      bool
	TypeID    uint64
	Catalog   *catalog.Catalog
	Locations *toc.Locations
}

// WriteStats counts the rows written by a snapshot
type WriteStats struct {
	Packages   int64
	Entries    int64
	Containers int64
	Resources  int64
}

// WriteOptions configures snapshot insertion
type WriteOptions struct {
	// BatchSize determines how many rows to insert per transaction
	BatchSize int
}

// DefaultWriteOptions returns sensible defaults for snapshot insertion
func DefaultWriteOptions() *WriteOptions {
	return &WriteOptions{BatchSize: 1000}
}

// SnapshotWriter replaces the contents of a database with a snapshot
type SnapshotWriter struct {
	db        *Database
	batchSize int
}

func NewSnapshotWriter(db *Database, options *WriteOptions) *SnapshotWriter {
	if options == nil || options.BatchSize <= 0 {
		options = DefaultWriteOptions()
	}
	return &SnapshotWriter{db: db, batchSize: options.BatchSize}
}

// FileID formats a 64-bit id the way it is stored in text columns
func FileID(id uint64) string {
	return fmt.Sprintf("%016x", id)
}

// Write creates the schema if needed, clears any previous snapshot and
// inserts the new one.
func (w *SnapshotWriter) Write(ctx context.Context, snap *Snapshot) (*WriteStats, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot cannot be nil")
	}

	if err := w.db.CreateSchema(ctx); err != nil {
		return nil, err
	}

	if err := w.clear(ctx); err != nil {
		return nil, err
	}

	stats := &WriteStats{}

	meta := [][]any{
		{"data_root", snap.DataRoot},
		{"slim", strconv.FormatBool(snap.Slim)},
		{"resource_type", FileID(snap.TypeID)},
		{"bundle_count", strconv.FormatUint(uint64(snap.Catalog.BundleCount()), 10)},
		{"created_at", time.Now().UTC().Format(time.RFC3339)},
	}
	if _, err := w.insertRows(ctx, "meta", []string{"key", "value"}, meta); err != nil {
		return nil, err
	}

	var packages, entries [][]any
	for _, name := range snap.Catalog.PackageNames() {
		p, _ := snap.Catalog.Package(name)
		packages = append(packages, []any{p.Name, int64(p.Size), len(p.Entries)})
		for i, e := range p.Entries {
			entries = append(entries, []any{p.Name, i, int64(e.OriginalOffset), int64(e.StartOffset), int64(p.Span(i)), e.Bundle()})
		}
	}

	var err error
	if stats.Packages, err = w.insertRows(ctx, "packages", []string{"name", "size", "entry_count"}, packages); err != nil {
		return nil, err
	}
	if stats.Entries, err = w.insertRows(ctx, "package_entries",
		[]string{"package", "entry_index", "original_offset", "start_offset", "span", "bundle"}, entries); err != nil {
		return nil, err
	}

	var containers [][]any
	for _, file := range snap.Catalog.Files() {
		idx, _ := snap.Catalog.Offsets(file)
		containers = append(containers, []any{file, len(idx)})
	}
	if stats.Containers, err = w.insertRows(ctx, "containers", []string{"file", "indexed_offsets"}, containers); err != nil {
		return nil, err
	}

	var resources [][]any
	if snap.Locations != nil {
		typeID := FileID(snap.TypeID)
		for _, id := range snap.Locations.IDs() {
			loc, _ := snap.Locations.Lookup(id)
			resources = append(resources, []any{FileID(id), typeID, loc.Package, int64(loc.Offset), int64(loc.Size)})
		}
	}
	if stats.Resources, err = w.insertRows(ctx, "resources",
		[]string{"file_id", "type_id", "package", "data_offset", "data_size"}, resources); err != nil {
		return nil, err
	}

	if _, err := w.db.Exec(ctx, "ANALYZE"); err != nil {
		return nil, fmt.Errorf("analyzing snapshot: %w", err)
	}

	slog.Info("Snapshot written",
		"database", w.db.Path(),
		"packages", stats.Packages,
		"entries", stats.Entries,
		"containers", stats.Containers,
		"resources", stats.Resources)

	return stats, nil
}

// clear empties every snapshot table in one transaction
func (w *SnapshotWriter) clear(ctx context.Context) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tables := Tables()
	slices.Reverse(tables)
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoteSQLIdentifier(table)); err != nil {
			return fmt.Errorf("clearing table %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing clear transaction: %w", err)
	}
	return nil
}

// insertRows inserts rows into table in batches, one transaction per batch
func (w *SnapshotWriter) insertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		slog.Debug("No rows to insert", "table", table)
		return 0, nil
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteSQLIdentifier(c)
		placeholders[i] = "?"
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteSQLIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))

	var inserted int64
	for batch := range slices.Chunk(rows, w.batchSize) {
		if err := w.insertBatch(ctx, insertSQL, batch); err != nil {
			return inserted, fmt.Errorf("inserting batch at row %d for table %s: %w", inserted, table, err)
		}
		inserted += int64(len(batch))
	}

	return inserted, nil
}

// insertBatch inserts a single batch of rows within a transaction
func (w *SnapshotWriter) insertBatch(ctx context.Context, insertSQL string, batch [][]any) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Safe to call even after commit

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range batch {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("inserting row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// quoteSQLIdentifier quotes SQL identifiers to prevent conflicts with reserved words
func quoteSQLIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
