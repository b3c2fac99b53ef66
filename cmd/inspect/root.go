package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	badgerPath string
	blugePath  string
	limit      int

	db *badger.DB
)

var rootCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Read the record store and the search index offline",
	Long: `Inspect opens the badger record store read-only, so it can run next to the server.

Examples:
  inspect keys --prefix outbox:
  inspect messages c1 --limit 10
  inspect outbox
  inspect deadletters
  inspect search c1 hello`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "search" {
			return nil
		}
		if badgerPath == "" {
			return fmt.Errorf("--db or BADGER_FILEPATH is required")
		}
		var err error
		db, err = openDB(badgerPath)
		if err != nil {
			return fmt.Errorf("open badger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
	},
}

func init() {
	_ = godotenv.Load()
	rootCmd.PersistentFlags().StringVar(&badgerPath, "db", os.Getenv("BADGER_FILEPATH"), "path to the badger record store")
	rootCmd.PersistentFlags().StringVar(&blugePath, "index", os.Getenv("BLUGE_FILEPATH"), "path to the bluge index root")
	rootCmd.PersistentFlags().IntVarP(&limit, "limit", "n", 50, "max rows")

	rootCmd.AddCommand(keysCmd, messagesCmd, outboxCmd, deadLettersCmd, searchCmd)
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err == nil {
		return db, nil
	}
	if !strings.Contains(err.Error(), "Log truncate required") {
		return nil, err
	}
	// A crashed writer leaves a value log to truncate, which needs a writable open.
	repaired, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil).WithBypassLockGuard(true))
	if err != nil {
		return nil, fmt.Errorf("repair failed: %w", err)
	}
	_ = repaired.Close()
	return badger.Open(opts)
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
