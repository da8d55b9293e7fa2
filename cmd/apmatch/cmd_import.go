package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline/apmatch/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import <file...>",
	Short: "Import invoices and purchase orders from JSON, XLSX, or PDF files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	docs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer docs.Close()

	registry := ingest.NewRegistry()
	out := cmd.OutOrStdout()
	for _, path := range args {
		invoices, pos, err := registry.Import(cmd.Context(), docs, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d invoices, %d purchase orders\n", path, invoices, pos)
	}
	return nil
}
