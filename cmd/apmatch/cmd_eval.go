package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline/apmatch"
	"github.com/ledgerline/apmatch/eval"
)

var evalFlags struct {
	dataset string
	asJSON  bool
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run a canned query dataset and report accuracy",
	RunE:  runEval,
}

func init() {
	f := evalCmd.Flags()
	f.StringVar(&evalFlags.dataset, "dataset", "smoke", "Dataset to run: smoke or planning")
	f.BoolVar(&evalFlags.asJSON, "json", false, "Print the full report as JSON")
}

func runEval(cmd *cobra.Command, args []string) error {
	var ds eval.Dataset
	switch evalFlags.dataset {
	case "smoke":
		ds = eval.SmokeDataset()
	case "planning":
		ds = eval.PlanningDataset()
	default:
		return fmt.Errorf("unknown dataset %q", evalFlags.dataset)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pipeline, err := apmatch.New(cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	report, err := eval.NewEvaluator(pipeline).Run(cmd.Context(), ds)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if evalFlags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "%s: %d/%d passed (%.0f%%) in %s\n",
		report.Dataset, report.Passed, report.TotalTests, report.Accuracy*100, report.Duration)
	for _, res := range report.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(out, "  [%s] %s (intent=%s confidence=%.2f)\n", status, res.Query, res.Intent, res.Confidence)
		if res.Failure != "" {
			fmt.Fprintf(out, "        %s\n", res.Failure)
		}
	}
	return nil
}
