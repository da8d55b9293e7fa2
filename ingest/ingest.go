// Package ingest loads invoice and purchase order records from external
// files. Each format has a Reader; the Registry picks one by file
// extension. Readers validate nothing beyond shape: records are validated
// by the store on write.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledgerline/apmatch/store"
)

// Batch is the typed result of reading one file. A file may carry either
// record kind or both.
type Batch struct {
	Invoices []store.Invoice
	POs      []store.PurchaseOrder
}

// Reader parses one file format into records.
type Reader interface {
	Read(ctx context.Context, path string) (*Batch, error)
	SupportedFormats() []string
}

// Writer is the store surface imports are written to.
type Writer interface {
	PutInvoice(ctx context.Context, inv store.Invoice) error
	PutPurchaseOrder(ctx context.Context, po store.PurchaseOrder) error
}

// Registry maps file extensions to readers.
type Registry struct {
	readers map[string]Reader
}

// NewRegistry returns a registry with the built-in readers registered.
func NewRegistry() *Registry {
	r := &Registry{readers: make(map[string]Reader)}
	for _, rd := range []Reader{&JSONReader{}, &XLSXReader{}, &PDFReader{}} {
		for _, f := range rd.SupportedFormats() {
			r.readers[f] = rd
		}
	}
	return r
}

// Register adds or replaces the reader for a format.
func (r *Registry) Register(format string, rd Reader) {
	r.readers[strings.ToLower(format)] = rd
}

// Get returns the reader for a format.
func (r *Registry) Get(format string) (Reader, error) {
	rd, ok := r.readers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("no reader for format: %s", format)
	}
	return rd, nil
}

// Import reads path with the reader matching its extension and writes every
// record to w. Returns the counts of records written. A record the store
// rejects aborts the import with that record's error.
func (r *Registry) Import(ctx context.Context, w Writer, path string) (invoices, pos int, err error) {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	rd, err := r.Get(format)
	if err != nil {
		return 0, 0, err
	}

	batch, err := rd.Read(ctx, path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading %s: %w", path, err)
	}

	for _, inv := range batch.Invoices {
		if err := w.PutInvoice(ctx, inv); err != nil {
			return invoices, pos, fmt.Errorf("importing invoice %s: %w", inv.InvoiceID, err)
		}
		invoices++
	}
	for _, po := range batch.POs {
		if err := w.PutPurchaseOrder(ctx, po); err != nil {
			return invoices, pos, fmt.Errorf("importing po %s: %w", po.PONumber, err)
		}
		pos++
	}
	return invoices, pos, nil
}
