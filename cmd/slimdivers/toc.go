package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jchantrell/slimdivers/internal/toc"
	"github.com/spf13/cobra"
)

var tocCmd = &cobra.Command{
	Use:   "toc <package>",
	Short: "Print the table of contents of a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		name := args[0]
		data, err := store.TOC(name)
		if err != nil {
			return fmt.Errorf("reading toc of %s: %w", name, err)
		}

		f, err := toc.Parse(data)
		if err != nil {
			return fmt.Errorf("parsing toc of %s: %w", name, err)
		}

		var filter uint64
		if v, _ := cmd.Flags().GetString("type"); v != "" {
			filter, err = strconv.ParseUint(strings.TrimPrefix(strings.ToLower(v), "0x"), 16, 64)
			if err != nil {
				return fmt.Errorf("invalid type %q: %w", v, err)
			}
		}

		fmt.Printf("Package %s (%s): %d types, %d files\n", name, store.Classify(name), f.TypeCount, f.FileCount)
		fmt.Printf("%-18s %-18s %-12s %-10s %-10s %-10s\n",
			"FileID", "TypeID", "DataOffset", "DataSize", "StreamSize", "GPUSize")
		fmt.Println(strings.Repeat("-", 84))

		for _, h := range f.Headers {
			if filter != 0 && h.TypeID != filter {
				continue
			}
			fmt.Printf("%016x   %016x   %-12d %-10d %-10d %-10d\n",
				h.FileID, h.TypeID, h.DataOffset, h.DataSize, h.StreamSize, h.GPUSize)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(tocCmd)
	tocCmd.Flags().String("type", "", "only show headers of this type id (hex)")
}
