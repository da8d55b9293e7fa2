// Package seed generates synthetic invoices and purchase orders for demos
// and local development. Generation is deterministic for a given seed and
// reference time, so repeated runs against a fresh store produce the same
// corpus.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ledgerline/apmatch/store"
)

var (
	vendors     = []string{"TechCorp", "SupplyCo", "MaterialsInc", "ServicePro", "EquipmentLtd"}
	poVendors   = []string{"TechCorp", "SupplyCo", "MaterialsInc", "ServicePro"}
	departments = []string{"IT", "Operations", "Finance", "HR", "Marketing"}
	poStatuses  = []string{"open", "partially_received", "closed"}

	flaggedReasons = []string{
		"Amount mismatch with PO",
		"Missing goods receipt",
		"Vendor not in approved list",
	}
)

// Options controls corpus size and determinism.
type Options struct {
	Invoices int   // default 50
	POs      int   // default 50
	Seed     int64 // default 1
}

// Writer is the store surface seeding needs.
type Writer interface {
	PutInvoice(ctx context.Context, inv store.Invoice) error
	PutPurchaseOrder(ctx context.Context, po store.PurchaseOrder) error
}

// Load generates a corpus and writes it to the store. Returns the number of
// invoices and purchase orders written.
func Load(ctx context.Context, w Writer, opts Options) (invoices, pos int, err error) {
	if opts.Invoices <= 0 {
		opts.Invoices = 50
	}
	if opts.POs <= 0 {
		opts.POs = 50
	}
	if opts.Seed == 0 {
		opts.Seed = 1
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	now := time.Now()
	for _, inv := range Invoices(rng, opts.Invoices, now) {
		if err := w.PutInvoice(ctx, inv); err != nil {
			return invoices, pos, fmt.Errorf("seeding invoice %s: %w", inv.InvoiceID, err)
		}
		invoices++
	}
	for _, po := range PurchaseOrders(rng, opts.POs, now) {
		if err := w.PutPurchaseOrder(ctx, po); err != nil {
			return invoices, pos, fmt.Errorf("seeding po %s: %w", po.PONumber, err)
		}
		pos++
	}
	return invoices, pos, nil
}

// Invoices generates count synthetic invoices dated relative to now. IDs
// run INV-1000 upward and
// roughly one in ten has no PO reference; roughly three in ten are flagged
// with an amount nudged away from its base.
func Invoices(rng *rand.Rand, count int, now time.Time) []store.Invoice {
	out := make([]store.Invoice, 0, count)
	for i := 0; i < count; i++ {
		poNumber := fmt.Sprintf("PO-%d", 2000+i)
		if rng.Float64() <= 0.1 {
			poNumber = ""
		}
		flagged := rng.Float64() < 0.3

		amount := 100 + rng.Float64()*9900
		if flagged {
			amount *= 0.8 + rng.Float64()*0.4
		}

		status := "flagged"
		var reasons []string
		if flagged {
			reasons = append([]string(nil), flaggedReasons...)
		} else if rng.Intn(2) == 0 {
			status = "pending"
		} else {
			status = "approved"
		}

		items := make([]store.LineItem, 1+rng.Intn(5))
		for j := range items {
			items[j] = store.LineItem{
				Description: fmt.Sprintf("Item %d", j+1),
				Quantity:    1 + rng.Intn(10),
				UnitPrice:   round2(10 + rng.Float64()*490),
				Total:       round2(50 + rng.Float64()*1950),
			}
		}

		out = append(out, store.Invoice{
			InvoiceID:      fmt.Sprintf("INV-%d", 1000+i),
			PONumber:       poNumber,
			Vendor:         vendors[rng.Intn(len(vendors))],
			InvoiceDate:    now.AddDate(0, 0, -(1 + rng.Intn(90))).Format(time.RFC3339),
			DueDate:        now.AddDate(0, 0, 15+rng.Intn(31)).Format(time.RFC3339),
			TotalAmount:    round2(amount),
			Currency:       "USD",
			Status:         status,
			LineItems:      items,
			FlaggedReasons: reasons,
		})
	}
	return out
}

// PurchaseOrders generates count synthetic purchase orders with numbers
// PO-2000 upward, aligned with the invoice PO references.
func PurchaseOrders(rng *rand.Rand, count int, now time.Time) []store.PurchaseOrder {
	out := make([]store.PurchaseOrder, 0, count)
	for i := 0; i < count; i++ {
		items := make([]store.POLineItem, 1+rng.Intn(5))
		for j := range items {
			items[j] = store.POLineItem{
				ItemCode:         fmt.Sprintf("ITEM-%d", 1000+rng.Intn(9000)),
				Description:      fmt.Sprintf("Product %d", j+1),
				QuantityOrdered:  1 + rng.Intn(10),
				QuantityReceived: rng.Intn(11),
				UnitPrice:        round2(10 + rng.Float64()*490),
			}
		}

		out = append(out, store.PurchaseOrder{
			PONumber:     fmt.Sprintf("PO-%d", 2000+i),
			Department:   departments[rng.Intn(len(departments))],
			CreatedDate:  now.AddDate(0, 0, -(30 + rng.Intn(91))).Format(time.RFC3339),
			Vendor:       poVendors[rng.Intn(len(poVendors))],
			TotalAmount:  round2(100 + rng.Float64()*9900),
			Currency:     "USD",
			Status:       poStatuses[rng.Intn(len(poStatuses))],
			LineItems:    items,
			DeliveryDate: now.AddDate(0, 0, 5+rng.Intn(26)).Format(time.RFC3339),
			Approver:     fmt.Sprintf("manager%d@company.com", 1+rng.Intn(5)),
		})
	}
	return out
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
