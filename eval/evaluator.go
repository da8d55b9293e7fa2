// Package eval runs canned query datasets through a pipeline and scores the
// outcomes. It is the harness behind the `apmatch eval` subcommand.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerline/apmatch"
)

// Evaluator runs evaluation datasets against a pipeline.
type Evaluator struct {
	pipeline apmatch.Pipeline
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(p apmatch.Pipeline) *Evaluator {
	return &Evaluator{pipeline: p}
}

// Report holds the results of an evaluation run.
type Report struct {
	Dataset    string       `json:"dataset"`
	TotalTests int          `json:"total_tests"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Accuracy   float64      `json:"accuracy"`
	Duration   string       `json:"duration"`
	Results    []CaseResult `json:"results"`
}

// CaseResult is the outcome of one test case.
type CaseResult struct {
	Query        string   `json:"query"`
	Category     string   `json:"category,omitempty"`
	Passed       bool     `json:"passed"`
	Intent       string   `json:"intent"`
	Confidence   float64  `json:"confidence"`
	MissingFacts []string `json:"missing_facts,omitempty"`
	Failure      string   `json:"failure,omitempty"`
}

// Run executes every case in the dataset under a shared session so that
// follow-up queries see the same audit trail.
func (e *Evaluator) Run(ctx context.Context, ds Dataset) (*Report, error) {
	start := time.Now()
	report := &Report{Dataset: ds.Name, TotalTests: len(ds.Tests)}
	sessionID := fmt.Sprintf("eval-%d", start.UnixNano())

	for _, tc := range ds.Tests {
		res := e.runCase(ctx, tc, sessionID)
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
		slog.Info("eval: case finished",
			"query", tc.Query,
			"passed", res.Passed,
			"intent", res.Intent,
			"confidence", res.Confidence)
	}

	if report.TotalTests > 0 {
		report.Accuracy = float64(report.Passed) / float64(report.TotalTests)
	}
	report.Duration = time.Since(start).Round(time.Millisecond).String()
	return report, nil
}

func (e *Evaluator) runCase(ctx context.Context, tc TestCase, sessionID string) CaseResult {
	res := CaseResult{Query: tc.Query, Category: tc.Category}

	out, err := e.pipeline.ProcessQuery(ctx, tc.Query, sessionID)
	if err != nil {
		res.Failure = err.Error()
		return res
	}
	res.Intent = string(out.Plan.Intent)
	res.Confidence = out.Confidence

	if tc.WantIntent != "" && out.Plan.Intent != tc.WantIntent {
		res.Failure = fmt.Sprintf("intent %q, want %q", out.Plan.Intent, tc.WantIntent)
		return res
	}
	if out.Confidence < tc.MinConfidence {
		res.Failure = fmt.Sprintf("confidence %.2f below %.2f", out.Confidence, tc.MinConfidence)
		return res
	}

	answer := strings.ToLower(out.Answer)
	for _, fact := range tc.ExpectedFacts {
		if !strings.Contains(answer, strings.ToLower(fact)) {
			res.MissingFacts = append(res.MissingFacts, fact)
		}
	}
	if len(res.MissingFacts) > 0 {
		res.Failure = fmt.Sprintf("answer missing %d expected fact(s)", len(res.MissingFacts))
		return res
	}

	res.Passed = true
	return res
}
