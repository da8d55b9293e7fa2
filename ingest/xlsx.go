package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ledgerline/apmatch/store"
)

// XLSXReader reads invoice and purchase order records from a workbook. Each
// sheet must have a header row; columns are matched by normalized header
// name ("Invoice ID" and "invoice_id" both work). A sheet with an
// invoice_id column holds invoices, a sheet with only a po_number column
// holds purchase orders; other sheets are skipped.
type XLSXReader struct{}

func (r *XLSXReader) SupportedFormats() []string { return []string{"xlsx", "xls"} }

func (r *XLSXReader) Read(ctx context.Context, path string) (*Batch, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	batch := &Batch{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}

		cols := make(map[string]int, len(rows[0]))
		for i, h := range rows[0] {
			cols[normalizeHeader(h)] = i
		}

		_, hasInvoice := cols["invoice_id"]
		_, hasPO := cols["po_number"]

		for _, row := range rows[1:] {
			cell := func(name string) string {
				i, ok := cols[name]
				if !ok || i >= len(row) {
					return ""
				}
				return strings.TrimSpace(row[i])
			}

			switch {
			case hasInvoice:
				if cell("invoice_id") == "" {
					continue
				}
				batch.Invoices = append(batch.Invoices, store.Invoice{
					InvoiceID:   strings.ToUpper(cell("invoice_id")),
					PONumber:    strings.ToUpper(cell("po_number")),
					Vendor:      cell("vendor"),
					InvoiceDate: cell("invoice_date"),
					DueDate:     cell("due_date"),
					TotalAmount: parseAmount(cell("total_amount")),
					Currency:    defaultStr(cell("currency"), "USD"),
					Status:      defaultStr(strings.ToLower(cell("status")), "pending"),
				})
			case hasPO:
				if cell("po_number") == "" {
					continue
				}
				batch.POs = append(batch.POs, store.PurchaseOrder{
					PONumber:     strings.ToUpper(cell("po_number")),
					Department:   cell("department"),
					CreatedDate:  cell("created_date"),
					Vendor:       cell("vendor"),
					TotalAmount:  parseAmount(cell("total_amount")),
					Currency:     defaultStr(cell("currency"), "USD"),
					Status:       defaultStr(strings.ToLower(cell("status")), "open"),
					DeliveryDate: cell("delivery_date"),
					Approver:     cell("approver"),
				})
			}
		}
	}

	if len(batch.Invoices) == 0 && len(batch.POs) == 0 {
		return nil, fmt.Errorf("no records found in workbook")
	}
	return batch, nil
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

// parseAmount tolerates currency formatting like "$1,234.50".
func parseAmount(s string) float64 {
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
