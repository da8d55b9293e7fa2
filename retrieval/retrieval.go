// Package retrieval executes a plan's actions against the document store,
// merges the evidence, and assigns per-hit confidence tiers. Retrieval is
// best-effort per action: a failed action degrades to empty evidence and is
// never retried within the same query.
package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ledgerline/apmatch/audit"
	"github.com/ledgerline/apmatch/planner"
	"github.com/ledgerline/apmatch/store"
)

// Per-hit confidence tiers. Direct identifier lookups outrank similarity
// hits; the two collections carry distinct similarity tiers.
const (
	TierDirect        = 95
	TierInvoiceSearch = 80
	TierPOSearch      = 75
	TierNotFound      = 0
)

// DocumentStore is the collaborator contract the orchestrator consumes.
type DocumentStore interface {
	// GetByID returns the document with the given business identifier, or
	// an error satisfying errors.Is(err, store.ErrNotFound) on a miss.
	GetByID(ctx context.Context, kind store.Kind, id string) (*store.Document, error)

	// Search returns up to k documents ranked by relevance. An empty result
	// is valid; partial or garbled records are not.
	Search(ctx context.Context, kind store.Kind, query string, k int) ([]store.Document, error)
}

// Evidence is one retrieved document with its confidence tier.
type Evidence struct {
	Document   store.Document `json:"document"`
	Confidence int            `json:"confidence"`
}

// Config holds orchestrator tuning knobs.
type Config struct {
	InvoiceK      int           // similarity fan-out for invoices (default 3)
	POK           int           // similarity fan-out for POs (default 2)
	ActionTimeout time.Duration // bound on one store call (default 5s)
}

// Orchestrator runs plan actions in order and writes one audit entry per
// action that touches the store.
type Orchestrator struct {
	store DocumentStore
	sink  audit.Sink
	cfg   Config
}

// New creates an orchestrator over the given store and audit sink.
func New(ds DocumentStore, sink audit.Sink, cfg Config) *Orchestrator {
	if cfg.InvoiceK == 0 {
		cfg.InvoiceK = 3
	}
	if cfg.POK == 0 {
		cfg.POK = 2
	}
	if cfg.ActionTimeout == 0 {
		cfg.ActionTimeout = 5 * time.Second
	}
	return &Orchestrator{store: ds, sink: sink, cfg: cfg}
}

// Execute runs every action of the plan in order and returns the merged
// evidence set. Identifier uniqueness in the store is the only
// deduplication applied.
func (o *Orchestrator) Execute(ctx context.Context, plan planner.Plan, sessionID string) []Evidence {
	var evidence []Evidence

	for _, action := range plan.Actions {
		switch action {
		case planner.ActionRetrieveInvoice:
			hits := o.retrieveInvoices(ctx, plan)
			evidence = append(evidence, hits...)
			o.logAction(action, plan, sessionID, hits)
		case planner.ActionRetrieveMatchingPO:
			hits := o.retrievePOs(ctx, plan)
			evidence = append(evidence, hits...)
			o.logAction(action, plan, sessionID, hits)
		case planner.ActionGeneralSearch:
			// Always similarity search over both collections, even when an
			// identifier was extracted from the query.
			hits := o.searchInvoices(ctx, plan.Query)
			hits = append(hits, o.searchPOs(ctx, plan.Query)...)
			evidence = append(evidence, hits...)
			o.logAction(action, plan, sessionID, hits)
		case planner.ActionExplainFlagging, planner.ActionApproveInvoice:
			// Handled downstream; no store access here.
		}
	}

	return evidence
}

// retrieveInvoices tries a direct id lookup first, then falls back to
// similarity search over the query text.
func (o *Orchestrator) retrieveInvoices(ctx context.Context, plan planner.Plan) []Evidence {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ActionTimeout)
	defer cancel()

	if id := plan.Entities.InvoiceID; id != "" {
		doc, err := o.store.GetByID(ctx, store.KindInvoice, id)
		switch {
		case err == nil:
			return []Evidence{{Document: *doc, Confidence: TierDirect}}
		case errors.Is(err, store.ErrNotFound):
			// fall through to similarity search
		default:
			slog.Warn("retrieval: invoice lookup degraded", "invoice_id", id, "error", err)
			return nil
		}
	}

	return o.searchInvoices(ctx, plan.Query)
}

// searchInvoices is the similarity-only invoice leg, shared by the direct
// lookup fallback and general search.
func (o *Orchestrator) searchInvoices(ctx context.Context, query string) []Evidence {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ActionTimeout)
	defer cancel()

	docs, err := o.store.Search(ctx, store.KindInvoice, query, o.cfg.InvoiceK)
	if err != nil {
		slog.Warn("retrieval: invoice search degraded", "error", err)
		return nil
	}
	return tierAll(docs, TierInvoiceSearch)
}

// retrievePOs mirrors retrieveInvoices for the PO collection.
func (o *Orchestrator) retrievePOs(ctx context.Context, plan planner.Plan) []Evidence {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ActionTimeout)
	defer cancel()

	if num := plan.Entities.PONumber; num != "" {
		doc, err := o.store.GetByID(ctx, store.KindPO, num)
		switch {
		case err == nil:
			return []Evidence{{Document: *doc, Confidence: TierDirect}}
		case errors.Is(err, store.ErrNotFound):
			// fall through to similarity search
		default:
			slog.Warn("retrieval: po lookup degraded", "po_number", num, "error", err)
			return nil
		}
	}

	return o.searchPOs(ctx, plan.Query)
}

// searchPOs mirrors searchInvoices for the PO collection.
func (o *Orchestrator) searchPOs(ctx context.Context, query string) []Evidence {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ActionTimeout)
	defer cancel()

	docs, err := o.store.Search(ctx, store.KindPO, query, o.cfg.POK)
	if err != nil {
		slog.Warn("retrieval: po search degraded", "error", err)
		return nil
	}
	return tierAll(docs, TierPOSearch)
}

func tierAll(docs []store.Document, tier int) []Evidence {
	evs := make([]Evidence, len(docs))
	for i, d := range docs {
		evs[i] = Evidence{Document: d, Confidence: tier}
	}
	return evs
}

// logAction writes the single audit entry for one executed action.
func (o *Orchestrator) logAction(action planner.Action, plan planner.Plan, sessionID string, hits []Evidence) {
	ids := make([]string, len(hits))
	confidence := TierNotFound
	for i, h := range hits {
		ids[i] = h.Document.ID
		if h.Confidence > confidence {
			confidence = h.Confidence
		}
	}

	input := map[string]any{
		"query":      plan.Query,
		"session_id": sessionID,
	}
	if plan.Entities.InvoiceID != "" {
		input["invoice_id"] = plan.Entities.InvoiceID
	}
	if plan.Entities.PONumber != "" {
		input["po_number"] = plan.Entities.PONumber
	}

	entry := audit.Entry{
		Timestamp: time.Now(),
		Stage:     string(action),
		Input:     input,
		Output: map[string]any{
			"found":     len(hits) > 0,
			"count":     len(hits),
			"documents": ids,
		},
		Confidence: float64(confidence),
	}
	if err := o.sink.Append(entry); err != nil {
		slog.Warn("retrieval: audit append failed", "stage", action, "error", err)
	}
}
