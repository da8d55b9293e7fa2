// Package apmatch answers natural-language questions about invoices and
// purchase orders. A query flows through intent planning, retrieval
// dispatch, invoice/PO verification, and response assembly; every stage
// writes one entry to an append-only audit trail.
package apmatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/apmatch/audit"
	"github.com/ledgerline/apmatch/planner"
	"github.com/ledgerline/apmatch/respond"
	"github.com/ledgerline/apmatch/retrieval"
	"github.com/ledgerline/apmatch/store"
	"github.com/ledgerline/apmatch/verify"
)

// Pipeline is the single entry point front ends call. Safe for concurrent
// use: queries are independent, and audit appends are serialized by the sink.
type Pipeline interface {
	// ProcessQuery runs one query end to end. An empty sessionID gets a
	// generated one; the session is recorded in every audit entry.
	ProcessQuery(ctx context.Context, text, sessionID string) (*QueryResult, error)

	// Audit exposes the trail for the read-side operations.
	Audit() audit.Sink

	// Close releases owned resources (the default SQLite store).
	Close() error
}

// QueryResult is the externally visible outcome of one query.
type QueryResult struct {
	Query        string               `json:"query"`
	SessionID    string               `json:"session_id"`
	Answer       string               `json:"answer"`
	Evidence     []retrieval.Evidence `json:"evidence"`
	Confidence   float64              `json:"confidence"`
	Sources      []string             `json:"sources"`
	Plan         planner.Plan         `json:"plan"`
	Verification *verify.Result       `json:"verification,omitempty"`
	Audit        []audit.Entry        `json:"audit_log"`
}

// Option overrides a collaborator wired by New.
type Option func(*pipeline)

// WithDocumentStore injects a document store, replacing the default
// SQLite-backed one. The pipeline does not close injected stores.
func WithDocumentStore(ds retrieval.DocumentStore) Option {
	return func(p *pipeline) { p.docs = ds }
}

// WithAuditSink injects an audit sink, replacing the default file sink.
func WithAuditSink(sink audit.Sink) Option {
	return func(p *pipeline) { p.sink = sink }
}

type pipeline struct {
	cfg    Config
	docs   retrieval.DocumentStore
	sink   audit.Sink
	closer io.Closer // set only when the pipeline owns the store
}

// New wires a pipeline from the configuration. Without options it opens the
// SQLite store and JSONL audit log at the configured paths.
func New(cfg Config, opts ...Option) (Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &pipeline{cfg: cfg}
	for _, o := range opts {
		o(p)
	}

	if p.docs == nil {
		s, err := store.New(cfg.ResolveDBPath(), store.Config{
			EmbeddingDim: cfg.EmbeddingDim,
			WeightVector: cfg.WeightVector,
			WeightFTS:    cfg.WeightFTS,
		})
		if err != nil {
			return nil, fmt.Errorf("opening document store: %w", err)
		}
		p.docs = s
		p.closer = s
	}

	if p.sink == nil {
		sink, err := audit.NewFileSink(cfg.ResolveAuditPath())
		if err != nil {
			if p.closer != nil {
				p.closer.Close()
			}
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		p.sink = sink
	}

	return p, nil
}

// Audit returns the pipeline's audit sink.
func (p *pipeline) Audit() audit.Sink {
	return p.sink
}

// Close closes the owned document store, if any.
func (p *pipeline) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// ProcessQuery runs planning, retrieval, verification, and response
// assembly for one query. Component failures degrade inside their stage;
// only a failure that prevents building any result at all escapes, as a
// single ErrPipeline after a confidence-0 audit entry.
func (p *pipeline) ProcessQuery(ctx context.Context, text, sessionID string) (result *QueryResult, err error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	rec := &recordingSink{inner: p.sink}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline: unexpected failure", "query", text, "session_id", sessionID, "panic", r)
			rec.Append(audit.Entry{
				Timestamp:  time.Now(),
				Stage:      "pipeline_error",
				Input:      map[string]any{"query": text, "session_id": sessionID},
				Output:     map[string]any{"error": fmt.Sprintf("%v", r)},
				Confidence: 0,
			})
			result = nil
			err = fmt.Errorf("%w: query %q session %s: %v", ErrPipeline, text, sessionID, r)
		}
	}()

	start := time.Now()

	// Stage 1: plan. Classification never fails.
	plan := planner.Classify(text)
	rec.Append(audit.Entry{
		Timestamp:  time.Now(),
		Stage:      "planning",
		Input:      map[string]any{"query": text, "session_id": sessionID},
		Output:     plan,
		Confidence: 100,
	})

	// Stage 2: retrieval. One audit entry per executed action, written by
	// the orchestrator; per-action failures degrade to empty evidence.
	orch := retrieval.New(p.docs, rec, retrieval.Config{
		InvoiceK: p.cfg.InvoiceSearchK,
		POK:      p.cfg.POSearchK,
	})
	evidence := orch.Execute(ctx, plan, sessionID)

	// Stage 3: verification, when the plan calls for a flagging analysis
	// and an invoice was retrieved.
	var verification *verify.Result
	if hasAction(plan, planner.ActionExplainFlagging) {
		if inv := firstInvoice(evidence, plan.Entities.InvoiceID); inv != nil {
			po := firstPO(evidence)
			verification = verify.Match(inv, po)
			rec.Append(audit.Entry{
				Timestamp: time.Now(),
				Stage:     "verification",
				Input: map[string]any{
					"invoice_id": inv.InvoiceID,
					"po_number":  poNumber(po),
					"session_id": sessionID,
				},
				Output:     verification,
				Confidence: float64(verification.Confidence),
			})
		}
	}

	// Stage 4: response assembly and overall confidence.
	resp := respond.Assemble(plan, evidence, verification)
	answer := resp.Render()
	confidence := respond.OverallConfidence(answer, evidence)
	rec.Append(audit.Entry{
		Timestamp: time.Now(),
		Stage:     "response_assembly",
		Input:     map[string]any{"query": text, "session_id": sessionID},
		Output: map[string]any{
			"answer_length":  len(answer),
			"evidence_count": len(evidence),
		},
		Confidence: confidence,
	})

	slog.Info("pipeline: query processed",
		"session_id", sessionID,
		"intent", plan.Intent,
		"evidence", len(evidence),
		"confidence", confidence,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return &QueryResult{
		Query:        text,
		SessionID:    sessionID,
		Answer:       answer,
		Evidence:     evidence,
		Confidence:   confidence,
		Sources:      sources(evidence),
		Plan:         plan,
		Verification: verification,
		Audit:        rec.snapshot(),
	}, nil
}

func hasAction(plan planner.Plan, action planner.Action) bool {
	for _, a := range plan.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// firstInvoice picks the invoice the query is about: the one matching the
// extracted id when present, otherwise the first invoice in evidence order.
func firstInvoice(evidence []retrieval.Evidence, invoiceID string) *store.Invoice {
	var fallback *store.Invoice
	for _, ev := range evidence {
		if ev.Document.Kind != store.KindInvoice || ev.Document.Invoice == nil {
			continue
		}
		if invoiceID != "" && strings.EqualFold(ev.Document.ID, invoiceID) {
			return ev.Document.Invoice
		}
		if fallback == nil {
			fallback = ev.Document.Invoice
		}
	}
	return fallback
}

func firstPO(evidence []retrieval.Evidence) *store.PurchaseOrder {
	for _, ev := range evidence {
		if ev.Document.Kind == store.KindPO && ev.Document.PO != nil {
			return ev.Document.PO
		}
	}
	return nil
}

func poNumber(po *store.PurchaseOrder) string {
	if po == nil {
		return ""
	}
	return po.PONumber
}

func sources(evidence []retrieval.Evidence) []string {
	out := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		switch ev.Document.Kind {
		case store.KindInvoice:
			out = append(out, "Invoice "+ev.Document.ID)
		case store.KindPO:
			out = append(out, "PO "+ev.Document.ID)
		}
	}
	return out
}

// recordingSink tees appends to the real sink while keeping the entries for
// this query's QueryResult.
type recordingSink struct {
	inner   audit.Sink
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingSink) Append(entry audit.Entry) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	if err := r.inner.Append(entry); err != nil {
		slog.Warn("pipeline: audit append failed", "stage", entry.Stage, "error", err)
		return err
	}
	return nil
}

func (r *recordingSink) Recent(limit int) ([]audit.Entry, error) {
	return r.inner.Recent(limit)
}

func (r *recordingSink) BySession(sessionID string) ([]audit.Entry, error) {
	return r.inner.BySession(sessionID)
}

func (r *recordingSink) snapshot() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
