package main

import (
	"errors"
	"net/http"

	"github.com/jchantrell/slimdivers/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only HTTP API over the game data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		locs, _, err := buildLocations(ctx, store)
		if err != nil {
			return err
		}

		err = server.New(store, locs).ListenAndServe(ctx, cfg.Listen)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
