// Package planner classifies query intent and derives the ordered action
// plan the rest of the pipeline executes. Classification is a pure function
// of the query text: the same text always yields the same plan.
package planner

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Action is one planned pipeline step.
type Action string

const (
	ActionRetrieveInvoice    Action = "retrieve_invoice"
	ActionRetrieveMatchingPO Action = "retrieve_matching_po"
	ActionExplainFlagging    Action = "explain_flagging"
	ActionApproveInvoice     Action = "approve_invoice"
	ActionGeneralSearch      Action = "general_search"
)

// Intent is the classified purpose of a query.
type Intent string

const (
	IntentFlagged  Intent = "flagged"
	IntentApproval Intent = "approval"
	IntentGeneral  Intent = "general"
)

// Entities holds structured identifiers extracted from free text.
// Either field may be empty; absence is not an error.
type Entities struct {
	InvoiceID string `json:"invoice_id,omitempty"`
	PONumber  string `json:"po_number,omitempty"`
}

// Plan is the ordered action sequence for one query. Created once, never
// mutated.
type Plan struct {
	Query     string    `json:"query"`
	Entities  Entities  `json:"entities"`
	Intent    Intent    `json:"intent"`
	Actions   []Action  `json:"actions"`
	Reasoning string    `json:"reasoning"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	invoiceIDPattern = regexp.MustCompile(`(?i)\bINV-\d+\b`)
	poNumberPattern  = regexp.MustCompile(`(?i)\bPO-\d+\b`)
)

// ExtractEntities pulls the first invoice id and PO number tokens out of
// free text, uppercased. Matching is case-insensitive.
func ExtractEntities(query string) Entities {
	var e Entities
	if m := invoiceIDPattern.FindString(query); m != "" {
		e.InvoiceID = strings.ToUpper(m)
	}
	if m := poNumberPattern.FindString(query); m != "" {
		e.PONumber = strings.ToUpper(m)
	}
	return e
}

// rule is one row of the classification table. Rules are evaluated in
// order; the first match wins.
type rule struct {
	intent  Intent
	match   func(lower string) bool
	actions func(e Entities) []Action
	reason  func(e Entities) string
}

var rules = []rule{
	{
		intent: IntentFlagged,
		match: func(lower string) bool {
			return strings.Contains(lower, "flag")
		},
		actions: func(e Entities) []Action {
			actions := []Action{ActionRetrieveInvoice}
			if e.InvoiceID != "" {
				actions = append(actions, ActionRetrieveMatchingPO)
			}
			return append(actions, ActionExplainFlagging)
		},
		reason: func(e Entities) string {
			if e.InvoiceID == "" {
				return "user asking about a flagged invoice"
			}
			return fmt.Sprintf("user asking about flagged invoice %s", e.InvoiceID)
		},
	},
	{
		intent: IntentApproval,
		match: func(lower string) bool {
			return strings.Contains(lower, "approve")
		},
		actions: func(Entities) []Action {
			return []Action{ActionApproveInvoice}
		},
		reason: func(Entities) string {
			return "user requesting invoice approval"
		},
	},
}

// Classify derives the plan for a query. It never fails: anything the rule
// table does not recognize falls through to a general search.
func Classify(query string) Plan {
	entities := ExtractEntities(query)
	lower := strings.ToLower(query)

	plan := Plan{
		Query:     query,
		Entities:  entities,
		CreatedAt: time.Now(),
	}

	for _, r := range rules {
		if r.match(lower) {
			plan.Intent = r.intent
			plan.Actions = r.actions(entities)
			plan.Reasoning = r.reason(entities)
			return plan
		}
	}

	plan.Intent = IntentGeneral
	plan.Actions = []Action{ActionGeneralSearch}
	plan.Reasoning = "general invoice/PO search query"
	return plan
}
