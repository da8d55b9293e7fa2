package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ledgerline/apmatch/store"
)

// JSONReader reads a JSON array of invoice or purchase order objects. The
// record kind is sniffed per object: anything carrying an invoice_id is an
// invoice, anything else with a po_number is a purchase order.
type JSONReader struct{}

func (r *JSONReader) SupportedFormats() []string { return []string{"json"} }

func (r *JSONReader) Read(ctx context.Context, path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening JSON: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Also accept a single object.
		var single json.RawMessage
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("decoding JSON: %w", err)
		}
		raw = []json.RawMessage{single}
	}

	batch := &Batch{}
	for i, msg := range raw {
		var probe struct {
			InvoiceID string `json:"invoice_id"`
			PONumber  string `json:"po_number"`
		}
		if err := json.Unmarshal(msg, &probe); err != nil {
			return nil, fmt.Errorf("decoding record %d: %w", i, err)
		}

		switch {
		case probe.InvoiceID != "":
			var inv store.Invoice
			if err := json.Unmarshal(msg, &inv); err != nil {
				return nil, fmt.Errorf("decoding invoice record %d: %w", i, err)
			}
			batch.Invoices = append(batch.Invoices, inv)
		case probe.PONumber != "":
			var po store.PurchaseOrder
			if err := json.Unmarshal(msg, &po); err != nil {
				return nil, fmt.Errorf("decoding po record %d: %w", i, err)
			}
			batch.POs = append(batch.POs, po)
		default:
			return nil, fmt.Errorf("record %d has neither invoice_id nor po_number", i)
		}
	}
	return batch, nil
}
