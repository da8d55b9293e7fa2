//go:build cgo && sqlite_fts5

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, Config{EmbeddingDim: 16}) // small vectors for tests
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPair(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	inv := Invoice{
		InvoiceID:      "INV-1023",
		PONumber:       "PO-2000",
		Vendor:         "TechCorp",
		TotalAmount:    1500,
		Currency:       "USD",
		Status:         "flagged",
		FlaggedReasons: []string{"Amount mismatch with PO"},
		LineItems:      []LineItem{{Description: "Laptops", Quantity: 3, UnitPrice: 500, Total: 1500}},
	}
	if err := s.PutInvoice(ctx, inv); err != nil {
		t.Fatalf("PutInvoice: %v", err)
	}
	po := PurchaseOrder{
		PONumber:    "PO-2000",
		Department:  "IT",
		Vendor:      "TechCorp",
		TotalAmount: 1450,
		Currency:    "USD",
		Status:      "open",
	}
	if err := s.PutPurchaseOrder(ctx, po); err != nil {
		t.Fatalf("PutPurchaseOrder: %v", err)
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "dir", "test.db")
	s, err := New(dbPath, Config{EmbeddingDim: 16})
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestPutAndGetByID(t *testing.T) {
	s := newTestStore(t)
	seedPair(t, s)
	ctx := context.Background()

	doc, err := s.GetByID(ctx, KindInvoice, "inv-1023") // case-insensitive id
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Invoice == nil {
		t.Fatal("typed invoice record missing")
	}
	if doc.Invoice.PONumber != "PO-2000" || len(doc.Invoice.LineItems) != 1 {
		t.Errorf("invoice record lost fields: %+v", doc.Invoice)
	}
	if doc.Vendor != "TechCorp" || doc.Amount != 1500 || doc.Status != "flagged" {
		t.Errorf("document projection wrong: %+v", doc)
	}

	if _, err := s.GetByID(ctx, KindInvoice, "INV-404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id: got %v, want ErrNotFound", err)
	}
	if _, err := s.GetByID(ctx, KindPO, "INV-1023"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-kind lookup: got %v, want ErrNotFound", err)
	}
}

func TestPutUpsert(t *testing.T) {
	s := newTestStore(t)
	seedPair(t, s)
	ctx := context.Background()

	inv := Invoice{
		InvoiceID:   "INV-1023",
		PONumber:    "PO-2000",
		Vendor:      "TechCorp",
		TotalAmount: 1500,
		Currency:    "USD",
		Status:      "approved",
	}
	if err := s.PutInvoice(ctx, inv); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if n, _ := s.Count(ctx, KindInvoice); n != 1 {
		t.Errorf("upsert duplicated the record: count %d", n)
	}
	doc, err := s.GetByID(ctx, KindInvoice, "INV-1023")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != "approved" {
		t.Errorf("upsert kept stale status %s", doc.Status)
	}
}

func TestPutUpsertReindexes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPair(t, s)

	// A later insert, so the upserted row's id is not the connection's
	// most recent insert rowid.
	other := Invoice{InvoiceID: "INV-3000", Vendor: "Initech", TotalAmount: 40, Currency: "USD", Status: "pending"}
	if err := s.PutInvoice(ctx, other); err != nil {
		t.Fatal(err)
	}

	updated := Invoice{
		InvoiceID:   "INV-1023",
		PONumber:    "PO-2000",
		Vendor:      "Globex Dynamics",
		TotalAmount: 1500,
		Currency:    "USD",
		Status:      "flagged",
	}
	if err := s.PutInvoice(ctx, updated); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// The FTS index must reflect the new vendor.
	docs, err := s.Search(ctx, KindInvoice, "Globex Dynamics", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) == 0 || docs[0].ID != "INV-1023" {
		t.Fatalf("updated vendor not searchable: %+v", docs)
	}

	// Exactly one embedding per document, each attached to a live row.
	var vecRows, orphans int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM vec_documents").Scan(&vecRows); err != nil {
		t.Fatal(err)
	}
	if err := s.DB().QueryRow(`
		SELECT COUNT(*) FROM vec_documents v
		WHERE NOT EXISTS (SELECT 1 FROM documents d WHERE d.id = v.doc_rowid)
	`).Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if vecRows != 3 || orphans != 0 {
		t.Errorf("embedding rows %d (want 3), orphans %d (want 0)", vecRows, orphans)
	}
}

func TestPutRejectsInvalidRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.PutInvoice(ctx, Invoice{InvoiceID: "INV-1", Vendor: "X", Status: "shredded"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
	if n, _ := s.Count(ctx, KindInvoice); n != 0 {
		t.Errorf("rejected record leaked into the store: %d", n)
	}
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	seedPair(t, s)
	ctx := context.Background()

	// Another invoice with nothing in common with the query.
	other := Invoice{InvoiceID: "INV-2001", Vendor: "ServicePro", TotalAmount: 80, Currency: "USD", Status: "pending"}
	if err := s.PutInvoice(ctx, other); err != nil {
		t.Fatal(err)
	}

	docs, err := s.Search(ctx, KindInvoice, "flagged TechCorp invoice", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("no hits")
	}
	if docs[0].ID != "INV-1023" {
		t.Errorf("top hit %s, want INV-1023", docs[0].ID)
	}
	for _, d := range docs {
		if d.Kind != KindInvoice {
			t.Errorf("search leaked %s document %s into invoice results", d.Kind, d.ID)
		}
	}

	// PO collection searches never return invoices.
	poDocs, err := s.Search(ctx, KindPO, "TechCorp order", 3)
	if err != nil {
		t.Fatalf("po search: %v", err)
	}
	for _, d := range poDocs {
		if d.Kind != KindPO {
			t.Errorf("po search returned %s %s", d.Kind, d.ID)
		}
	}

	// Queries made of FTS5-hostile characters degrade to empty, not error.
	if _, err := s.Search(ctx, KindInvoice, `"(*&^%$`, 3); err != nil {
		t.Errorf("hostile query errored: %v", err)
	}
}

func TestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if n, err := s.Count(ctx, KindInvoice); err != nil || n != 0 {
		t.Fatalf("empty count: n=%d err=%v", n, err)
	}
	seedPair(t, s)
	if n, _ := s.Count(ctx, KindInvoice); n != 1 {
		t.Errorf("invoice count %d, want 1", n)
	}
	if n, _ := s.Count(ctx, KindPO); n != 1 {
		t.Errorf("po count %d, want 1", n)
	}
}
