package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline/apmatch/audit"
)

var auditFlags struct {
	limit     int
	sessionID string
	asJSON    bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent audit trail entries",
	RunE:  runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.IntVar(&auditFlags.limit, "limit", 20, "Number of recent entries to show")
	f.StringVar(&auditFlags.sessionID, "session", "", "Show all entries for one session instead")
	f.BoolVar(&auditFlags.asJSON, "json", false, "Print entries as JSON")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sink, err := audit.NewFileSink(cfg.ResolveAuditPath())
	if err != nil {
		return err
	}

	var entries []audit.Entry
	if auditFlags.sessionID != "" {
		entries, err = sink.BySession(auditFlags.sessionID)
	} else {
		entries, err = sink.Recent(auditFlags.limit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if auditFlags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-20s  confidence=%.2f  session=%s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Stage, e.Confidence, e.SessionID())
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit entries")
	}
	return nil
}
