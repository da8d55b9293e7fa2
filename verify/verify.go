// Package verify compares an invoice against a candidate purchase order
// with a deterministic rule set and derives a match score, issue list, and
// auto-approval verdict. It never raises: any internal failure is absorbed
// into the result with confidence forced to zero.
package verify

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ledgerline/apmatch/store"
)

const (
	// approvalThreshold is the minimum confidence for auto-approval and
	// the score level below which issues become flagging reasons.
	approvalThreshold = 70

	// amountTolerance is the allowed relative variance between invoice and
	// PO totals before an issue is raised.
	amountTolerance = 0.05

	penaltyVendorMismatch = 20
	penaltyAmountVariance = 15
	penaltyPONumber       = 25
	penaltyPerIssue       = 5

	// scoreNoPO is the fixed match score when no purchase order exists.
	scoreNoPO = 30
)

// Result is the outcome of one invoice/PO comparison. Computed fresh per
// pair, never cached.
type Result struct {
	MatchScore      int      `json:"match_score"` // pre-clamp, may be negative
	Confidence      int      `json:"confidence"`  // clamped to [0,100]
	Issues          []string `json:"issues"`
	FlaggingReasons []string `json:"flagging_reasons"`
	Recommendations []string `json:"recommendations"`
	AutoApprovable  bool     `json:"auto_approvable"`
}

// Match evaluates an invoice against an optional purchase order.
func Match(invoice *store.Invoice, po *store.PurchaseOrder) *Result {
	result := &Result{}

	func() {
		// A malformed record must degrade to a zero-confidence result, not
		// take the pipeline down.
		defer func() {
			if r := recover(); r != nil {
				slog.Warn("verify: internal failure absorbed", "error", r)
				result.Issues = append(result.Issues, fmt.Sprintf("Verification error: %v", r))
				result.Confidence = 0
			}
		}()
		evaluate(invoice, po, result)
	}()

	return result
}

func evaluate(invoice *store.Invoice, po *store.PurchaseOrder, result *Result) {
	if invoice == nil {
		result.Issues = append(result.Issues, "Verification error: no invoice provided")
		result.Confidence = 0
		result.Recommendations = append(result.Recommendations, "Manual review required")
		return
	}

	if po != nil {
		if !strings.EqualFold(invoice.Vendor, po.Vendor) {
			result.Issues = append(result.Issues, "Vendor name mismatch")
			result.MatchScore -= penaltyVendorMismatch
		}

		// A zero PO amount makes the relative variance undefined; treat it
		// as a mismatch rather than dividing by zero.
		if po.TotalAmount == 0 ||
			math.Abs(invoice.TotalAmount-po.TotalAmount)/po.TotalAmount > amountTolerance {
			result.Issues = append(result.Issues, fmt.Sprintf(
				"Amount variance: Invoice $%.2f, PO $%.2f", invoice.TotalAmount, po.TotalAmount))
			result.MatchScore -= penaltyAmountVariance
		}

		if invoice.PONumber != po.PONumber {
			result.Issues = append(result.Issues, "PO number mismatch")
			result.MatchScore -= penaltyPONumber
		}
	} else {
		result.Issues = append(result.Issues, "No matching purchase order found")
		result.MatchScore = scoreNoPO
		result.FlaggingReasons = append(result.FlaggingReasons, "Missing PO reference")
	}

	if result.MatchScore < approvalThreshold {
		result.FlaggingReasons = append(result.FlaggingReasons, result.Issues...)
	}

	result.Confidence = clamp(result.MatchScore-len(result.Issues)*penaltyPerIssue, 0, 100)
	result.AutoApprovable = result.Confidence >= approvalThreshold && len(result.Issues) <= 1

	switch {
	case result.Confidence < 50:
		result.Recommendations = append(result.Recommendations, "Manual review required")
	case result.Confidence < 80:
		result.Recommendations = append(result.Recommendations, "Secondary approval recommended")
	default:
		result.Recommendations = append(result.Recommendations, "Suitable for auto-approval")
	}
}

// ShouldEscalate reports whether a case needs human review. Usable on its
// own, independent of Match.
func ShouldEscalate(confidence int, issueCount int) bool {
	return confidence < approvalThreshold || issueCount > 2
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
