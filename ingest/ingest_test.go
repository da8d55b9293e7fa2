package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/ledgerline/apmatch/store"
)

func TestJSONReaderMixedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	data := `[
		{"invoice_id": "INV-1000", "po_number": "PO-2000", "vendor": "TechCorp",
		 "total_amount": 1500.5, "currency": "USD", "status": "flagged",
		 "flagged_reasons": ["Amount mismatch with PO"]},
		{"po_number": "PO-2000", "vendor": "TechCorp", "department": "IT",
		 "total_amount": 1450, "currency": "USD", "status": "open"}
	]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	batch, err := (&JSONReader{}).Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(batch.Invoices) != 1 || len(batch.POs) != 1 {
		t.Fatalf("got %d invoices and %d pos, want 1 and 1", len(batch.Invoices), len(batch.POs))
	}

	wantInv := store.Invoice{
		InvoiceID:      "INV-1000",
		PONumber:       "PO-2000",
		Vendor:         "TechCorp",
		TotalAmount:    1500.5,
		Currency:       "USD",
		Status:         "flagged",
		FlaggedReasons: []string{"Amount mismatch with PO"},
	}
	if diff := cmp.Diff(wantInv, batch.Invoices[0]); diff != "" {
		t.Errorf("invoice mismatch (-want +got):\n%s", diff)
	}
	if batch.POs[0].Department != "IT" {
		t.Errorf("po department: got %q, want IT", batch.POs[0].Department)
	}
}

func TestJSONReaderRejectsUnknownRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`[{"vendor": "nobody"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := (&JSONReader{}).Read(context.Background(), path); err == nil {
		t.Fatal("expected error for record without identifiers")
	}
}

func TestXLSXReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Invoice ID", "PO Number", "Vendor", "Total Amount", "Currency", "Status"},
		{"inv-1000", "po-2000", "TechCorp", "$1,500.50", "USD", "Flagged"},
		{"", "", "", "", "", ""}, // blank row skipped
		{"INV-1001", "", "SupplyCo", "200", "", ""},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.NewSheet("POs"); err != nil {
		t.Fatal(err)
	}
	poRows := [][]any{
		{"po_number", "vendor", "department", "total_amount", "status"},
		{"PO-2000", "TechCorp", "IT", "1450", "open"},
	}
	for i, row := range poRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("POs", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	batch, err := (&XLSXReader{}).Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(batch.Invoices) != 2 || len(batch.POs) != 1 {
		t.Fatalf("got %d invoices and %d pos, want 2 and 1", len(batch.Invoices), len(batch.POs))
	}

	inv := batch.Invoices[0]
	if inv.InvoiceID != "INV-1000" || inv.PONumber != "PO-2000" {
		t.Errorf("identifiers not normalized: %+v", inv)
	}
	if inv.TotalAmount != 1500.5 {
		t.Errorf("amount parsing: got %v, want 1500.5", inv.TotalAmount)
	}
	if inv.Status != "flagged" {
		t.Errorf("status not lowercased: %q", inv.Status)
	}
	// Missing cells fall to defaults.
	if batch.Invoices[1].Currency != "USD" || batch.Invoices[1].Status != "pending" {
		t.Errorf("defaults not applied: %+v", batch.Invoices[1])
	}
	if batch.POs[0].Department != "IT" {
		t.Errorf("po sheet parsing: %+v", batch.POs[0])
	}
}

func TestParseLabeledText(t *testing.T) {
	text := `Invoice ID: INV-1042
PO Number: PO-2042
Vendor: TechCorp
Total Amount: 1500.00 USD
Status: Flagged
Invoice Date: 2026-07-01

PO Number: PO-2042
Department: IT
Vendor: TechCorp
Total Amount: $1,450.00
Status: open
Approver: manager1@company.com

Invoice ID: INV-1043
PO Number: N/A
Vendor: SupplyCo
Total Amount: 99.95 USD
Status: pending
`

	batch := parseLabeledText(text)
	if len(batch.Invoices) != 2 || len(batch.POs) != 1 {
		t.Fatalf("got %d invoices and %d pos, want 2 and 1", len(batch.Invoices), len(batch.POs))
	}

	first := batch.Invoices[0]
	if first.InvoiceID != "INV-1042" || first.PONumber != "PO-2042" {
		t.Errorf("first invoice identifiers: %+v", first)
	}
	if first.TotalAmount != 1500 || first.Status != "flagged" || first.InvoiceDate != "2026-07-01" {
		t.Errorf("first invoice fields: %+v", first)
	}

	second := batch.Invoices[1]
	if second.PONumber != "" {
		t.Errorf("N/A reference kept: %q", second.PONumber)
	}
	if second.TotalAmount != 99.95 {
		t.Errorf("second invoice amount: %v", second.TotalAmount)
	}

	po := batch.POs[0]
	if po.PONumber != "PO-2042" || po.TotalAmount != 1450 || po.Approver != "manager1@company.com" {
		t.Errorf("po fields: %+v", po)
	}
}

func TestRegistryImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	data := `[{"invoice_id": "INV-1000", "vendor": "TechCorp", "total_amount": 10, "currency": "USD", "status": "pending"}]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	m := store.NewMemory()
	invoices, pos, err := NewRegistry().Import(context.Background(), m, path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if invoices != 1 || pos != 0 {
		t.Errorf("imported %d/%d records, want 1/0", invoices, pos)
	}
	if _, err := m.GetByID(context.Background(), store.KindInvoice, "INV-1000"); err != nil {
		t.Errorf("imported invoice missing: %v", err)
	}

	if _, _, err := NewRegistry().Import(context.Background(), m, "records.csv"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
