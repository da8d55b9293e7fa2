// Package respond turns a query's intent, evidence, and verification
// outcome into the final answer text and an overall confidence score.
// Business selection lives in Assemble; text formatting lives in the
// Render methods, one per response variant.
package respond

import (
	"fmt"
	"strings"

	"github.com/ledgerline/apmatch/planner"
	"github.com/ledgerline/apmatch/retrieval"
	"github.com/ledgerline/apmatch/store"
	"github.com/ledgerline/apmatch/verify"
)

// Overall-confidence bands. Distinct from both per-hit retrieval tiers and
// verification confidence; the constants are carried over as given.
const (
	confidenceNoEvidence = 0.1
	confidenceWeak       = 0.3
	confidenceAnswered   = 0.7
	confidenceFlagged    = 0.85
)

// maxListedDocs caps how many documents a general answer enumerates.
const maxListedDocs = 5

// genericFlagReasons is used when a flagged invoice record carries no
// explicit reasons of its own.
var genericFlagReasons = []string{
	"Amount mismatch detected",
	"Missing supporting documents",
}

// Response is a renderable answer variant.
type Response interface {
	Render() string
}

// NotFound is the fixed no-evidence answer.
type NotFound struct{}

func (NotFound) Render() string {
	return "No relevant documents found for your query. " +
		"Please try a different search term or check if the invoice/PO exists."
}

// Approval is the fixed human-confirmation disclosure. It never consults
// retrieval evidence.
type Approval struct{}

func (Approval) Render() string {
	return strings.TrimSpace(`
**Approval Request Processed**

**HUMAN CONFIRMATION REQUIRED**

Automatic approval is disabled for this channel:
1. Manager approval is required
2. The audit trail has been updated
3. Invoice status changes only after confirmation

**Action:** Approval request logged to audit trail.
**Status:** Pending human confirmation`)
}

// Flagged explains why an invoice is in flagged status.
type Flagged struct {
	Invoice      *store.Invoice
	EvidenceSize int
	Verification *verify.Result // nil when no comparison ran
}

func (r Flagged) Render() string {
	reasons := r.Invoice.FlaggedReasons
	if len(reasons) == 0 {
		reasons = genericFlagReasons
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Invoice %s Flagging Analysis**\n\n", r.Invoice.InvoiceID)
	b.WriteString("**Why it was flagged:**\n")
	for _, reason := range reasons {
		fmt.Fprintf(&b, "- %s\n", reason)
	}
	b.WriteString("\n**Invoice Details:**\n")
	fmt.Fprintf(&b, "- Vendor: %s\n", r.Invoice.Vendor)
	fmt.Fprintf(&b, "- Amount: $%.2f\n", r.Invoice.TotalAmount)
	fmt.Fprintf(&b, "- Status: %s\n", r.Invoice.Status)
	fmt.Fprintf(&b, "\n**Evidence Retrieved:** %d supporting documents\n", r.EvidenceSize)
	if r.Verification != nil {
		fmt.Fprintf(&b, "**Match Score:** %d/100\n", r.Verification.MatchScore)
		fmt.Fprintf(&b, "**Match Confidence:** %d%%\n", r.Verification.Confidence)
		if len(r.Verification.Recommendations) > 0 {
			fmt.Fprintf(&b, "\n**Recommendation:** %s", strings.Join(r.Verification.Recommendations, ", "))
		}
	} else {
		b.WriteString("\n**Recommendation:** Review flagged items before approval.")
	}
	return strings.TrimSpace(b.String())
}

// FlaggedMiss reports that no invoice in flagged status matched the query.
type FlaggedMiss struct {
	InvoiceID string // may be empty
}

func (r FlaggedMiss) Render() string {
	id := r.InvoiceID
	if id == "" {
		id = "specified"
	}
	return fmt.Sprintf("Invoice %s was not found in flagged status. "+
		"Please check the invoice ID or status.", id)
}

// General summarizes retrieved documents for an open-ended query.
type General struct {
	Query    string
	Evidence []retrieval.Evidence
}

func (r General) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Search Results for: %q**\n\n", r.Query)
	fmt.Fprintf(&b, "**Found %d relevant documents:**\n", len(r.Evidence))

	listed := r.Evidence
	if len(listed) > maxListedDocs {
		listed = listed[:maxListedDocs]
	}
	for _, ev := range listed {
		doc := ev.Document
		fmt.Fprintf(&b, "- %s %s - %s ($%.2f) - %s\n",
			titleKind(doc.Kind), doc.ID, doc.Vendor, doc.Amount, doc.Status)
	}
	b.WriteString("\n**Sources:** Invoice and PO databases")
	return strings.TrimSpace(b.String())
}

func titleKind(kind store.Kind) string {
	switch kind {
	case store.KindInvoice:
		return "Invoice"
	case store.KindPO:
		return "PO"
	default:
		return "Document"
	}
}

// Assemble selects the response variant for (intent, evidence) and renders
// it. verification may be nil.
func Assemble(plan planner.Plan, evidence []retrieval.Evidence, verification *verify.Result) Response {
	if plan.Intent == planner.IntentApproval {
		return Approval{}
	}
	if len(evidence) == 0 {
		return NotFound{}
	}

	switch plan.Intent {
	case planner.IntentFlagged:
		if inv := findFlaggedInvoice(evidence, plan.Entities.InvoiceID); inv != nil {
			return Flagged{
				Invoice:      inv,
				EvidenceSize: len(evidence),
				Verification: verification,
			}
		}
		return FlaggedMiss{InvoiceID: plan.Entities.InvoiceID}
	default:
		return General{Query: plan.Query, Evidence: evidence}
	}
}

// findFlaggedInvoice picks the flagged invoice the query is about: the one
// matching the extracted id when present, otherwise the first flagged
// invoice in evidence order.
func findFlaggedInvoice(evidence []retrieval.Evidence, invoiceID string) *store.Invoice {
	for _, ev := range evidence {
		doc := ev.Document
		if doc.Kind != store.KindInvoice || doc.Invoice == nil || doc.Status != "flagged" {
			continue
		}
		if invoiceID != "" && !strings.EqualFold(doc.ID, invoiceID) {
			continue
		}
		return doc.Invoice
	}
	return nil
}

// OverallConfidence derives the response-level confidence from the answer
// and evidence set. It is deliberately distinct from both the per-hit
// retrieval tiers and the verification confidence.
func OverallConfidence(answer string, evidence []retrieval.Evidence) float64 {
	switch {
	case len(evidence) == 0:
		return confidenceNoEvidence
	case len(evidence) >= 3 && anyFlagged(evidence):
		return confidenceFlagged
	case answer != "" && !strings.Contains(answer, "No relevant documents"):
		return confidenceAnswered
	default:
		return confidenceWeak
	}
}

func anyFlagged(evidence []retrieval.Evidence) bool {
	for _, ev := range evidence {
		if ev.Document.Status == "flagged" ||
			strings.Contains(strings.ToLower(ev.Document.Content), "flagged") {
			return true
		}
	}
	return false
}
