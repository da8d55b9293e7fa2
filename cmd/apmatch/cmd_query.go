package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerline/apmatch"
)

var queryFlags struct {
	sessionID string
	asJSON    bool
}

var queryCmd = &cobra.Command{
	Use:   "query <question...>",
	Short: "Ask a question about invoices and purchase orders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryFlags.sessionID, "session", "", "Session ID for audit correlation (generated if empty)")
	f.BoolVar(&queryFlags.asJSON, "json", false, "Print the full result as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipeline, err := apmatch.New(cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	result, err := pipeline.ProcessQuery(cmd.Context(), strings.Join(args, " "), queryFlags.sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if queryFlags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintln(out, result.Answer)
	fmt.Fprintf(out, "\nConfidence: %.2f\n", result.Confidence)
	if len(result.Sources) > 0 {
		fmt.Fprintf(out, "Sources: %s\n", strings.Join(result.Sources, ", "))
	}
	fmt.Fprintf(out, "Session: %s\n", result.SessionID)
	return nil
}
