package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/jchantrell/slimdivers/internal/database"
	"github.com/jchantrell/slimdivers/internal/utils"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Export the bundle catalog and resource index to SQLite",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := time.Now()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		locs, scan, err := buildLocations(ctx, store)
		if err != nil {
			return err
		}

		typeID, err := cfg.ResourceTypeID()
		if err != nil {
			return err
		}

		db, err := database.NewDatabase(database.DefaultDatabaseOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		writeStart := time.Now()
		stats, err := database.NewSnapshotWriter(db, nil).Write(ctx, &database.Snapshot{
			DataRoot:  cfg.DataRoot,
			Slim:      store.IsSlim(),
			TypeID:    typeID,
			Catalog:   store.Catalog(),
			Locations: locs,
		})
		if err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		writeDuration := time.Since(writeStart)

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		rows := stats.Packages + stats.Entries + stats.Containers + stats.Resources
		var rate float64
		if s := writeDuration.Seconds(); s > 0 {
			rate = float64(rows) / s
		}

		fmt.Printf("Packages scanned: %d/%d\n", scan.Succeeded(), len(scan.Results))
		fmt.Printf("Bundled packages: %s\n", utils.Number(stats.Packages))
		fmt.Printf("Bundle entries: %s\n", utils.Number(stats.Entries))
		fmt.Printf("Containers: %s\n", utils.Number(stats.Containers))
		fmt.Printf("Resources: %s\n", utils.Number(stats.Resources))
		fmt.Printf("Insertion rate: %s rows/sec\n", utils.Rate(rate))
		fmt.Printf("Total duration: %s\n", utils.Duration(time.Since(start)))
		fmt.Printf("Memory usage: %s\n", utils.Bytes(int64(mem.Alloc)))
		fmt.Println("Try running: slimdivers query --tables")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
