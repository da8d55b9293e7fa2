package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ledgerline/apmatch/store"
)

// PDFReader extracts records from PDFs that carry labeled field lines, the
// layout document exports use ("Invoice ID: INV-1042", "Vendor: TechCorp").
// A line starting a new Invoice ID or PO Number opens a new record; labeled
// lines below it fill the fields. Pages that fail text extraction are
// skipped.
type PDFReader struct{}

func (r *PDFReader) SupportedFormats() []string { return []string{"pdf"} }

func (r *PDFReader) Read(ctx context.Context, path string) (*Batch, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(content)
		text.WriteString("\n")
	}

	batch := parseLabeledText(text.String())
	if len(batch.Invoices) == 0 && len(batch.POs) == 0 {
		return nil, fmt.Errorf("no labeled records found in PDF")
	}
	return batch, nil
}

func parseLabeledText(text string) *Batch {
	batch := &Batch{}

	var inv *store.Invoice
	var po *store.PurchaseOrder

	flush := func() {
		if inv != nil {
			batch.Invoices = append(batch.Invoices, *inv)
			inv = nil
		}
		if po != nil {
			batch.POs = append(batch.POs, *po)
			po = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		label, value, ok := splitLabel(line)
		if !ok {
			continue
		}

		switch label {
		case "invoice id":
			flush()
			inv = &store.Invoice{
				InvoiceID: strings.ToUpper(value),
				Currency:  "USD",
				Status:    "pending",
			}
		case "po number":
			// Inside an invoice block this is the reference; on its own it
			// opens a purchase order record.
			if inv != nil && inv.PONumber == "" {
				if !strings.EqualFold(value, "N/A") {
					inv.PONumber = strings.ToUpper(value)
				}
				continue
			}
			flush()
			po = &store.PurchaseOrder{
				PONumber: strings.ToUpper(value),
				Currency: "USD",
				Status:   "open",
			}
		case "vendor":
			if inv != nil {
				inv.Vendor = value
			} else if po != nil {
				po.Vendor = value
			}
		case "total amount":
			amount, currency := splitAmount(value)
			if inv != nil {
				inv.TotalAmount = amount
				inv.Currency = currency
			} else if po != nil {
				po.TotalAmount = amount
				po.Currency = currency
			}
		case "status":
			if inv != nil {
				inv.Status = strings.ToLower(value)
			} else if po != nil {
				po.Status = strings.ToLower(value)
			}
		case "invoice date":
			if inv != nil {
				inv.InvoiceDate = value
			}
		case "due date":
			if inv != nil {
				inv.DueDate = value
			}
		case "department":
			if po != nil {
				po.Department = value
			}
		case "created date":
			if po != nil {
				po.CreatedDate = value
			}
		case "delivery date":
			if po != nil {
				po.DeliveryDate = value
			}
		case "approver":
			if po != nil {
				po.Approver = value
			}
		}
	}
	flush()
	return batch
}

func splitLabel(line string) (label, value string, ok bool) {
	i := strings.Index(line, ":")
	if i < 0 {
		return "", "", false
	}
	label = strings.ToLower(strings.TrimSpace(line[:i]))
	value = strings.TrimSpace(line[i+1:])
	if label == "" || value == "" {
		return "", "", false
	}
	return label, value, true
}

// splitAmount parses "1234.50 USD" or "$1,234.50".
func splitAmount(s string) (amount float64, currency string) {
	currency = "USD"
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, currency
	}
	if len(fields) > 1 {
		currency = strings.ToUpper(fields[len(fields)-1])
	}
	return parseAmount(fields[0]), currency
}
