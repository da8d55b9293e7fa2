// Command apmatch is the CLI for the invoice/PO query pipeline.
//
// The SQLite store needs the FTS5 build tag:
//
//	go run -tags sqlite_fts5 ./cmd/apmatch query "Why was INV-1023 flagged?"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "apmatch",
	Short: "Natural-language queries over invoices and purchase orders",
	Long: "apmatch answers questions about invoices and purchase orders:\n" +
		"flagging analysis, approval routing, and free-text search, with a\n" +
		"full audit trail of every pipeline stage.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var rootFlags struct {
	configPath string
	dbPath     string
	auditPath  string
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Path to config file (JSON)")
	pf.StringVar(&rootFlags.dbPath, "db", "", "SQLite database path (overrides config)")
	pf.StringVar(&rootFlags.auditPath, "audit", "", "Audit log path (overrides config)")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
