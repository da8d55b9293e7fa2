package eval

import "github.com/ledgerline/apmatch/planner"

// Dataset is a collection of canned queries with expected outcomes.
type Dataset struct {
	Name  string     `json:"name"`
	Tests []TestCase `json:"tests"`
}

// TestCase defines a single evaluation query.
type TestCase struct {
	Query         string         `json:"query"`
	WantIntent    planner.Intent `json:"want_intent"`
	ExpectedFacts []string       `json:"expected_facts"` // substrings that must appear in the answer
	MinConfidence float64        `json:"min_confidence"`
	Category      string         `json:"category"` // flagging, search, approval
}

// SmokeDataset returns the canonical end-to-end queries. It assumes a store
// holding invoice INV-1023 and purchase orders seeded alongside it.
func SmokeDataset() Dataset {
	return Dataset{
		Name: "Smoke - End-to-end Pipeline",
		Tests: []TestCase{
			{
				Query:         "Why was invoice INV-1023 flagged?",
				WantIntent:    planner.IntentFlagged,
				ExpectedFacts: []string{"INV-1023"},
				Category:      "flagging",
			},
			{
				Query:      "Show me invoices from TechCorp",
				WantIntent: planner.IntentGeneral,
				Category:   "search",
			},
			{
				Query:         "Approve it",
				WantIntent:    planner.IntentApproval,
				ExpectedFacts: []string{"HUMAN CONFIRMATION"},
				Category:      "approval",
			},
		},
	}
}

// PlanningDataset returns intent-classification cases that need no seeded
// documents. Only the planned intent is checked.
func PlanningDataset() Dataset {
	return Dataset{
		Name: "Planning - Intent Classification",
		Tests: []TestCase{
			{Query: "Why is INV-1042 flagged?", WantIntent: planner.IntentFlagged, Category: "flagging"},
			{Query: "What flags were raised on this invoice?", WantIntent: planner.IntentFlagged, Category: "flagging"},
			{Query: "Please approve INV-1007 for payment", WantIntent: planner.IntentApproval, Category: "approval"},
			{Query: "List open purchase orders for Engineering", WantIntent: planner.IntentGeneral, Category: "search"},
			{Query: "total spend with Initech last quarter", WantIntent: planner.IntentGeneral, Category: "search"},
		},
	}
}
