package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jchantrell/slimdivers/internal/bundle"
	"github.com/jchantrell/slimdivers/internal/catalog"
	"github.com/jchantrell/slimdivers/internal/database"
	"github.com/jchantrell/slimdivers/internal/toc"
	"github.com/stretchr/testify/require"
)

func openDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(database.DefaultDatabaseOptions(filepath.Join(t.TempDir(), "nested", "snap.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testSnapshot() *database.Snapshot {
	cat := catalog.New(2,
		map[string]*catalog.Package{
			"deadbeefdeadbeef": {
				Name: "deadbeefdeadbeef",
				Size: 400,
				Entries: []catalog.Entry{
					{OriginalOffset: 0, StartOffset: 64, BundleIndex: 0},
					{OriginalOffset: 100, StartOffset: 128, BundleIndex: 1},
				},
			},
		},
		map[string]bundle.OffsetIndex{
			"bundles.00.nxa": {0: 0, 64: 1, 128: 2},
			"bundles.01.nxa": bundle.BuildOffsetIndex([]bundle.Chunk{
				{UncompressedOffset: 0},
				{UncompressedOffset: 0},
				{UncompressedOffset: 32},
			}),
		},
	)

	locs := toc.NewLocations()
	locs.Set(0xE0A48D0BE9A7453F, toc.Location{Package: "deadbeefdeadbeef", Offset: 100, Size: 30})
	locs.Set(7, toc.Location{Package: "deadbeefdeadbeef", Offset: 0, Size: 10})

	return &database.Snapshot{
		DataRoot:  "/data",
		Slim:      true,
		TypeID:    0xE0A48D0BE9A7453F,
		Catalog:   cat,
		Locations: locs,
	}
}

func TestWriteSnapshot(t *testing.T) {
	ctx := context.Background()
	db := openDatabase(t)

	w := database.NewSnapshotWriter(db, &database.WriteOptions{BatchSize: 1})
	stats, err := w.Write(ctx, testSnapshot())
	require.NoError(t, err)
	require.Equal(t, &database.WriteStats{Packages: 1, Entries: 2, Containers: 2, Resources: 2}, stats)

	var span, offsets int64
	require.NoError(t, db.QueryRow(ctx, `SELECT span FROM package_entries WHERE package = ? AND entry_index = 1`, "deadbeefdeadbeef").Scan(&span))
	require.Equal(t, int64(300), span)
	require.NoError(t, db.QueryRow(ctx, `SELECT indexed_offsets FROM containers WHERE file = 'bundles.00.nxa'`).Scan(&offsets))
	require.Equal(t, int64(3), offsets)
	// chunks sharing an uncompressed offset are indexed once
	require.NoError(t, db.QueryRow(ctx, `SELECT indexed_offsets FROM containers WHERE file = 'bundles.01.nxa'`).Scan(&offsets))
	require.Equal(t, int64(2), offsets)

	var bundles string
	require.NoError(t, db.QueryRow(ctx, `SELECT value FROM meta WHERE key = 'bundle_count'`).Scan(&bundles))
	require.Equal(t, "2", bundles)

	var analyzed int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'sqlite_stat1'`).Scan(&analyzed))
	require.Equal(t, 1, analyzed)

	var pkg string
	require.NoError(t, db.QueryRow(ctx, `SELECT package FROM resources WHERE file_id = ?`, "e0a48d0be9a7453f").Scan(&pkg))
	require.Equal(t, "deadbeefdeadbeef", pkg)

	// writing again replaces the previous snapshot
	_, err = w.Write(ctx, testSnapshot())
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM resources`).Scan(&count))
	require.Equal(t, 2, count)
}

func TestWriteEmptySnapshot(t *testing.T) {
	db := openDatabase(t)

	stats, err := database.NewSnapshotWriter(db, nil).Write(context.Background(), &database.Snapshot{})
	require.NoError(t, err)
	require.Zero(t, stats.Packages)
	require.Zero(t, stats.Resources)

	_, err = database.NewSnapshotWriter(db, nil).Write(context.Background(), nil)
	require.Error(t, err)
}

func TestClosedDatabase(t *testing.T) {
	db := openDatabase(t)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.Exec(context.Background(), "SELECT 1")
	require.Error(t, err)
}

func TestFileID(t *testing.T) {
	require.Equal(t, "000000000000002a", database.FileID(42))
}
