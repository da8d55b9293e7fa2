package eval

import (
	"context"
	"strings"
	"testing"

	"github.com/ledgerline/apmatch"
	"github.com/ledgerline/apmatch/audit"
	"github.com/ledgerline/apmatch/planner"
	"github.com/ledgerline/apmatch/store"
)

func newEvalPipeline(t *testing.T) apmatch.Pipeline {
	t.Helper()
	docs := store.NewMemory()
	err := docs.PutInvoice(context.Background(), store.Invoice{
		InvoiceID:      "INV-1023",
		PONumber:       "PO-2000",
		Vendor:         "TechCorp",
		TotalAmount:    1500,
		Currency:       "USD",
		Status:         "flagged",
		FlaggedReasons: []string{"Amount mismatch with PO"},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = docs.PutPurchaseOrder(context.Background(), store.PurchaseOrder{
		PONumber:    "PO-2000",
		Vendor:      "TechCorp",
		TotalAmount: 1000,
		Currency:    "USD",
		Status:      "open",
	})
	if err != nil {
		t.Fatal(err)
	}
	p, err := apmatch.New(apmatch.DefaultConfig(),
		apmatch.WithDocumentStore(docs),
		apmatch.WithAuditSink(audit.NewMemorySink()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestRunSmokeDataset(t *testing.T) {
	ev := NewEvaluator(newEvalPipeline(t))

	report, err := ev.Run(context.Background(), SmokeDataset())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.TotalTests != 3 || report.Passed != 3 || report.Failed != 0 {
		t.Fatalf("report: %d/%d passed, results %+v", report.Passed, report.TotalTests, report.Results)
	}
	if report.Accuracy != 1.0 {
		t.Errorf("accuracy: got %v, want 1.0", report.Accuracy)
	}
	for _, res := range report.Results {
		if res.Failure != "" || len(res.MissingFacts) > 0 {
			t.Errorf("case %q: failure %q, missing %v", res.Query, res.Failure, res.MissingFacts)
		}
	}
}

func TestRunPlanningDataset(t *testing.T) {
	ev := NewEvaluator(newEvalPipeline(t))

	report, err := ev.Run(context.Background(), PlanningDataset())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 0 {
		t.Fatalf("report: %+v", report.Results)
	}
	for _, res := range report.Results {
		if res.Intent == "" {
			t.Errorf("case %q: empty intent", res.Query)
		}
	}
}

func TestDatasetsClassifyAsLabeled(t *testing.T) {
	for _, ds := range []Dataset{SmokeDataset(), PlanningDataset()} {
		for _, tc := range ds.Tests {
			if tc.WantIntent == "" {
				continue
			}
			if got := planner.Classify(tc.Query).Intent; got != tc.WantIntent {
				t.Errorf("%s: %q classifies as %s, labeled %s", ds.Name, tc.Query, got, tc.WantIntent)
			}
		}
	}
}

func TestRunReportsMissingFacts(t *testing.T) {
	ev := NewEvaluator(newEvalPipeline(t))

	ds := Dataset{
		Name: "negative",
		Tests: []TestCase{{
			Query:         "Why was invoice INV-1023 flagged?",
			WantIntent:    planner.IntentFlagged,
			ExpectedFacts: []string{"this phrase never appears"},
		}},
	}
	report, err := ev.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Passed != 0 || report.Failed != 1 {
		t.Fatalf("report: %+v", report)
	}
	res := report.Results[0]
	if len(res.MissingFacts) != 1 || !strings.Contains(res.Failure, "missing") {
		t.Errorf("result: %+v", res)
	}
}

func TestRunWrongIntentFails(t *testing.T) {
	ev := NewEvaluator(newEvalPipeline(t))

	ds := Dataset{
		Name:  "negative",
		Tests: []TestCase{{Query: "Approve it", WantIntent: planner.IntentFlagged}},
	}
	report, err := ev.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 || !strings.Contains(report.Results[0].Failure, "intent") {
		t.Fatalf("report: %+v", report.Results)
	}
}
