package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a direct identifier lookup misses.
	ErrNotFound = errors.New("store: document not found")

	// ErrValidation is returned when a record fails boundary validation.
	ErrValidation = errors.New("store: record validation failed")

	// ErrUnavailable is returned when the backing database cannot be reached.
	ErrUnavailable = errors.New("store: unavailable")
)

// Kind identifies a document collection.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindPO      Kind = "po"
)

// LineItem is a single billed line on an invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// POLineItem is a single ordered line on a purchase order.
type POLineItem struct {
	ItemCode         string  `json:"item_code"`
	Description      string  `json:"description"`
	QuantityOrdered  int     `json:"quantity_ordered"`
	QuantityReceived int     `json:"quantity_received"`
	UnitPrice        float64 `json:"unit_price"`
}

// Invoice is a vendor billing record, optionally referencing a purchase order.
type Invoice struct {
	InvoiceID      string     `json:"invoice_id"`
	PONumber       string     `json:"po_number,omitempty"`
	Vendor         string     `json:"vendor"`
	InvoiceDate    string     `json:"invoice_date,omitempty"`
	DueDate        string     `json:"due_date,omitempty"`
	TotalAmount    float64    `json:"total_amount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"` // pending | approved | flagged
	LineItems      []LineItem `json:"line_items,omitempty"`
	FlaggedReasons []string   `json:"flagged_reasons,omitempty"`
}

// Validate checks the fields the pipeline depends on. Records failing
// validation never enter the store.
func (inv *Invoice) Validate() error {
	if inv.InvoiceID == "" {
		return fmt.Errorf("%w: invoice id is required", ErrValidation)
	}
	if inv.Vendor == "" {
		return fmt.Errorf("%w: invoice %s has no vendor", ErrValidation, inv.InvoiceID)
	}
	if inv.TotalAmount < 0 {
		return fmt.Errorf("%w: invoice %s has negative amount", ErrValidation, inv.InvoiceID)
	}
	switch inv.Status {
	case "pending", "approved", "flagged":
	default:
		return fmt.Errorf("%w: invoice %s has unknown status %q", ErrValidation, inv.InvoiceID, inv.Status)
	}
	return nil
}

// PurchaseOrder is an authorization record an invoice is matched against.
type PurchaseOrder struct {
	PONumber     string       `json:"po_number"`
	Department   string       `json:"department,omitempty"`
	CreatedDate  string       `json:"created_date,omitempty"`
	Vendor       string       `json:"vendor"`
	TotalAmount  float64      `json:"total_amount"`
	Currency     string       `json:"currency"`
	Status       string       `json:"status"`
	LineItems    []POLineItem `json:"line_items,omitempty"`
	DeliveryDate string       `json:"delivery_date,omitempty"`
	Approver     string       `json:"approver,omitempty"`
}

// Validate checks the fields the pipeline depends on.
func (po *PurchaseOrder) Validate() error {
	if po.PONumber == "" {
		return fmt.Errorf("%w: po number is required", ErrValidation)
	}
	if po.Vendor == "" {
		return fmt.Errorf("%w: po %s has no vendor", ErrValidation, po.PONumber)
	}
	if po.TotalAmount < 0 {
		return fmt.Errorf("%w: po %s has negative amount", ErrValidation, po.PONumber)
	}
	return nil
}

// Document is the evidence record handed to the pipeline. Exactly one of
// Invoice/PO is set, matching Kind.
type Document struct {
	Kind    Kind    `json:"kind"`
	ID      string  `json:"id"`
	Vendor  string  `json:"vendor"`
	Amount  float64 `json:"amount"`
	Status  string  `json:"status"`
	Content string  `json:"content"`

	Invoice *Invoice       `json:"invoice,omitempty"`
	PO      *PurchaseOrder `json:"po,omitempty"`
}

// RenderInvoice produces the indexable text block for an invoice. The
// rendered form is what similarity search runs over, so it carries every
// field a searcher might phrase a query around.
func RenderInvoice(inv *Invoice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice ID: %s\n", inv.InvoiceID)
	po := inv.PONumber
	if po == "" {
		po = "N/A"
	}
	fmt.Fprintf(&b, "PO Number: %s\n", po)
	fmt.Fprintf(&b, "Vendor: %s\n", inv.Vendor)
	fmt.Fprintf(&b, "Total Amount: %.2f %s\n", inv.TotalAmount, inv.Currency)
	fmt.Fprintf(&b, "Status: %s\n", inv.Status)
	if inv.InvoiceDate != "" {
		fmt.Fprintf(&b, "Invoice Date: %s\n", inv.InvoiceDate)
	}
	if inv.DueDate != "" {
		fmt.Fprintf(&b, "Due Date: %s\n", inv.DueDate)
	}
	if len(inv.LineItems) > 0 {
		b.WriteString("Line Items:\n")
		for _, li := range inv.LineItems {
			fmt.Fprintf(&b, "- %s: Qty %d @ $%.2f\n", li.Description, li.Quantity, li.UnitPrice)
		}
	}
	if len(inv.FlaggedReasons) > 0 {
		fmt.Fprintf(&b, "Flagged Reasons: %s\n", strings.Join(inv.FlaggedReasons, ", "))
	}
	return strings.TrimSpace(b.String())
}

// RenderPO produces the indexable text block for a purchase order.
func RenderPO(po *PurchaseOrder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PO Number: %s\n", po.PONumber)
	if po.Department != "" {
		fmt.Fprintf(&b, "Department: %s\n", po.Department)
	}
	fmt.Fprintf(&b, "Vendor: %s\n", po.Vendor)
	fmt.Fprintf(&b, "Total Amount: %.2f %s\n", po.TotalAmount, po.Currency)
	fmt.Fprintf(&b, "Status: %s\n", po.Status)
	if po.CreatedDate != "" {
		fmt.Fprintf(&b, "Created Date: %s\n", po.CreatedDate)
	}
	if po.DeliveryDate != "" {
		fmt.Fprintf(&b, "Delivery Date: %s\n", po.DeliveryDate)
	}
	if len(po.LineItems) > 0 {
		b.WriteString("Line Items:\n")
		for _, li := range po.LineItems {
			fmt.Fprintf(&b, "- %s: Ordered %d, Received %d\n", li.Description, li.QuantityOrdered, li.QuantityReceived)
		}
	}
	if po.Approver != "" {
		fmt.Fprintf(&b, "Approver: %s\n", po.Approver)
	}
	return strings.TrimSpace(b.String())
}

// DocumentFromInvoice builds the evidence record for an invoice.
func DocumentFromInvoice(inv *Invoice) Document {
	return Document{
		Kind:    KindInvoice,
		ID:      inv.InvoiceID,
		Vendor:  inv.Vendor,
		Amount:  inv.TotalAmount,
		Status:  inv.Status,
		Content: RenderInvoice(inv),
		Invoice: inv,
	}
}

// DocumentFromPO builds the evidence record for a purchase order.
func DocumentFromPO(po *PurchaseOrder) Document {
	return Document{
		Kind:    KindPO,
		ID:      po.PONumber,
		Vendor:  po.Vendor,
		Amount:  po.TotalAmount,
		Status:  po.Status,
		Content: RenderPO(po),
		PO:      po,
	}
}
