package seed

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ledgerline/apmatch/store"
)

func TestInvoicesDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := Invoices(rand.New(rand.NewSource(7)), 20, now)
	b := Invoices(rand.New(rand.NewSource(7)), 20, now)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different invoices:\n%s", diff)
	}
}

func TestInvoicesShape(t *testing.T) {
	invoices := Invoices(rand.New(rand.NewSource(1)), 50, time.Now())
	if len(invoices) != 50 {
		t.Fatalf("generated %d invoices, want 50", len(invoices))
	}

	if invoices[0].InvoiceID != "INV-1000" || invoices[49].InvoiceID != "INV-1049" {
		t.Errorf("id sequence wrong: %s .. %s", invoices[0].InvoiceID, invoices[49].InvoiceID)
	}

	var flagged int
	for _, inv := range invoices {
		if err := inv.Validate(); err != nil {
			t.Errorf("invalid generated invoice %s: %v", inv.InvoiceID, err)
		}
		if inv.PONumber != "" && !strings.HasPrefix(inv.PONumber, "PO-2") {
			t.Errorf("invoice %s references unexpected po %s", inv.InvoiceID, inv.PONumber)
		}
		if inv.Status == "flagged" {
			flagged++
			if len(inv.FlaggedReasons) == 0 {
				t.Errorf("flagged invoice %s has no reasons", inv.InvoiceID)
			}
		} else if len(inv.FlaggedReasons) != 0 {
			t.Errorf("%s invoice %s carries flagged reasons", inv.Status, inv.InvoiceID)
		}
		if len(inv.LineItems) == 0 {
			t.Errorf("invoice %s has no line items", inv.InvoiceID)
		}
	}
	// Roughly three in ten flagged; allow wide slack for a 50-draw sample.
	if flagged < 5 || flagged > 30 {
		t.Errorf("flagged count %d outside plausible range", flagged)
	}
}

func TestPurchaseOrdersShape(t *testing.T) {
	pos := PurchaseOrders(rand.New(rand.NewSource(1)), 50, time.Now())
	if len(pos) != 50 {
		t.Fatalf("generated %d pos, want 50", len(pos))
	}
	if pos[0].PONumber != "PO-2000" || pos[49].PONumber != "PO-2049" {
		t.Errorf("po numbering wrong: %s .. %s", pos[0].PONumber, pos[49].PONumber)
	}
	for _, po := range pos {
		if err := po.Validate(); err != nil {
			t.Errorf("invalid generated po %s: %v", po.PONumber, err)
		}
		if po.Approver == "" || po.Department == "" {
			t.Errorf("po %s missing approver/department", po.PONumber)
		}
	}
}

func TestLoad(t *testing.T) {
	m := store.NewMemory()
	invoices, pos, err := Load(context.Background(), m, Options{Invoices: 10, POs: 8, Seed: 3})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if invoices != 10 || pos != 8 {
		t.Errorf("reported %d/%d records, want 10/8", invoices, pos)
	}

	ctx := context.Background()
	if n, _ := m.Count(ctx, store.KindInvoice); n != 10 {
		t.Errorf("stored %d invoices, want 10", n)
	}
	if n, _ := m.Count(ctx, store.KindPO); n != 8 {
		t.Errorf("stored %d pos, want 8", n)
	}

	doc, err := m.GetByID(ctx, store.KindInvoice, "INV-1000")
	if err != nil {
		t.Fatalf("seeded invoice missing: %v", err)
	}
	if doc.Invoice == nil || doc.Invoice.Currency != "USD" {
		t.Errorf("seeded invoice malformed: %+v", doc.Invoice)
	}
}
