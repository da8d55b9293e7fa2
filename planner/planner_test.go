package planner

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Entities
	}{
		{
			name:  "both identifiers",
			query: "Why was INV-1023 flagged against PO-2000?",
			want:  Entities{InvoiceID: "INV-1023", PONumber: "PO-2000"},
		},
		{
			name:  "lowercase normalized",
			query: "show inv-1023 and po-2000",
			want:  Entities{InvoiceID: "INV-1023", PONumber: "PO-2000"},
		},
		{
			name:  "first match wins",
			query: "compare INV-1 with INV-2",
			want:  Entities{InvoiceID: "INV-1"},
		},
		{
			name:  "no word boundary",
			query: "reference XINV-1023 and PO-20a",
			want:  Entities{},
		},
		{
			name:  "empty query",
			query: "",
			want:  Entities{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractEntities(tt.query)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("entities mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantIntent  Intent
		wantActions []Action
	}{
		{
			name:       "flagged with invoice id",
			query:      "Why was INV-1023 flagged?",
			wantIntent: IntentFlagged,
			wantActions: []Action{
				ActionRetrieveInvoice,
				ActionRetrieveMatchingPO,
				ActionExplainFlagging,
			},
		},
		{
			name:       "flagged without invoice id skips po retrieval",
			query:      "show me flagged invoices",
			wantIntent: IntentFlagged,
			wantActions: []Action{
				ActionRetrieveInvoice,
				ActionExplainFlagging,
			},
		},
		{
			name:        "approval",
			query:       "please approve INV-1040",
			wantIntent:  IntentApproval,
			wantActions: []Action{ActionApproveInvoice},
		},
		{
			// The flag rule is checked before the approval rule.
			name:       "flag keyword outranks approve",
			query:      "approve the flagged invoice INV-1023",
			wantIntent: IntentFlagged,
			wantActions: []Action{
				ActionRetrieveInvoice,
				ActionRetrieveMatchingPO,
				ActionExplainFlagging,
			},
		},
		{
			name:        "fallback to general search",
			query:       "invoices from TechCorp this month",
			wantIntent:  IntentGeneral,
			wantActions: []Action{ActionGeneralSearch},
		},
		{
			name:        "empty query still plans",
			query:       "",
			wantIntent:  IntentGeneral,
			wantActions: []Action{ActionGeneralSearch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Classify(tt.query)
			if plan.Intent != tt.wantIntent {
				t.Errorf("intent: got %s, want %s", plan.Intent, tt.wantIntent)
			}
			if diff := cmp.Diff(tt.wantActions, plan.Actions); diff != "" {
				t.Errorf("actions mismatch (-want +got):\n%s", diff)
			}
			if plan.Query != tt.query {
				t.Errorf("plan query: got %q, want %q", plan.Query, tt.query)
			}
			if plan.Reasoning == "" {
				t.Error("plan reasoning is empty")
			}
		})
	}
}

// Classification must be a pure function of the query text.
func TestClassifyDeterministic(t *testing.T) {
	const query = "Why was INV-1023 flagged?"
	first := Classify(query)
	for i := 0; i < 5; i++ {
		again := Classify(query)
		if again.Intent != first.Intent {
			t.Fatalf("intent changed between runs: %s vs %s", again.Intent, first.Intent)
		}
		if diff := cmp.Diff(first.Actions, again.Actions); diff != "" {
			t.Fatalf("actions changed between runs (-first +again):\n%s", diff)
		}
		if again.Entities != first.Entities {
			t.Fatalf("entities changed between runs: %+v vs %+v", again.Entities, first.Entities)
		}
	}
}
