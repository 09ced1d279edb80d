package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jchantrell/slimdivers/internal/database"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Query the exported snapshot database",
	Long: `Query runs SQL against the database written by the index command, lists
its tables, or shows a table's columns.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		listTables, err := cmd.Flags().GetBool("tables")
		if err != nil {
			return fmt.Errorf("failed to get tables flag: %w", err)
		}
		schemaTable, err := cmd.Flags().GetString("schema")
		if err != nil {
			return fmt.Errorf("failed to get schema flag: %w", err)
		}

		if _, err := os.Stat(cfg.Database); err != nil {
			return fmt.Errorf("database %s not found, run slimdivers index first: %w", cfg.Database, err)
		}

		db, err := database.NewDatabase(database.DefaultDatabaseOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		switch {
		case listTables:
			return printRows(ctx, db, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
		case schemaTable != "":
			slog.Debug("Getting table schema", "table", schemaTable)
			return printRows(ctx, db, `SELECT name, type, "notnull", pk FROM pragma_table_info(?)`, schemaTable)
		case len(args) > 0:
			slog.Debug("Executing SQL query", "query", args[0])
			return printRows(ctx, db, args[0])
		default:
			return fmt.Errorf("no query provided, use --tables to list tables or --schema <table> to show schema")
		}
	},
}

// printRows runs query and prints its result as aligned columns
func printRows(ctx context.Context, db *database.Database, query string, args ...any) error {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("getting column names: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(columns, "\t"))

	rules := make([]string, len(columns))
	for i, col := range columns {
		rules[i] = strings.Repeat("-", len(col))
	}
	fmt.Fprintln(w, strings.Join(rules, "\t"))

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}

		cells := make([]string, len(values))
		for i, v := range values {
			switch v := v.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(v)
			default:
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
		count++
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}

	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("(%d rows)\n", count)
	return nil
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().Bool("tables", false, "List available tables")
	queryCmd.Flags().String("schema", "", "Show schema for specified table")
}
