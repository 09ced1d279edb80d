package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jchantrell/slimdivers/internal/patch"
	"github.com/jchantrell/slimdivers/internal/utils"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update mod patch files to match the current game data",
	Long: `Update finds every patch file below patch_dir and replaces the LOD group
of each unit it carries with the game's current copy, moving the data and
internal offsets that follow. Files that cannot be updated are left as they
were.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := time.Now()

		if cfg.PatchDir == "" {
			return fmt.Errorf("no patch directory configured: set patch_dir or pass --patch-dir")
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		locs, scan, err := buildLocations(ctx, store)
		if err != nil {
			return err
		}
		slog.Info("Game resources indexed", "resources", locs.Len(), "packages", scan.Succeeded())

		typeID, err := cfg.ResourceTypeID()
		if err != nil {
			return err
		}

		relocator := patch.NewRelocator(patch.NewUnitSource(store, locs), typeID)

		progress := utils.NewProgress("Updating patches", progressEnabled())
		report, err := relocator.UpdateAll(ctx, cfg.PatchDir, patch.Options{
			Workers:  cfg.Workers,
			Progress: progress.Update,
		})
		progress.Finish()
		if err != nil {
			return err
		}

		printReport("Patch files updated", report, time.Since(start))
		if report.Failed() > 0 {
			return fmt.Errorf("%d patch files could not be updated", report.Failed())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
