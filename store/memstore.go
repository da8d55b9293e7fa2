package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory document store with the same contract as Store.
// It needs no cgo and is the substitute of choice in tests and embedded use.
type Memory struct {
	mu   sync.RWMutex
	docs map[Kind]map[string]Document
	ord  map[Kind][]string // insertion order, for deterministic ranking ties
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: map[Kind]map[string]Document{
			KindInvoice: {},
			KindPO:      {},
		},
		ord: map[Kind][]string{},
	}
}

// PutInvoice validates and stores an invoice.
func (m *Memory) PutInvoice(_ context.Context, inv Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	m.put(DocumentFromInvoice(&inv))
	return nil
}

// PutPurchaseOrder validates and stores a purchase order.
func (m *Memory) PutPurchaseOrder(_ context.Context, po PurchaseOrder) error {
	if err := po.Validate(); err != nil {
		return err
	}
	m.put(DocumentFromPO(&po))
	return nil
}

func (m *Memory) put(doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.Kind][doc.ID]; !exists {
		m.ord[doc.Kind] = append(m.ord[doc.Kind], doc.ID)
	}
	m.docs[doc.Kind][doc.ID] = doc
}

// GetByID retrieves one document, ErrNotFound on a miss.
func (m *Memory) GetByID(_ context.Context, kind Kind, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[kind][strings.ToUpper(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return &doc, nil
}

// Search scores documents by token overlap between the query and the
// rendered content - a cheap stand-in for the SQLite hybrid search with the
// same ordering contract.
func (m *Memory) Search(_ context.Context, kind Kind, query string, k int) ([]Document, error) {
	if k <= 0 {
		k = 3
	}

	toks := tokenize(query)
	if len(toks) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		doc   Document
		score int
		order int
	}
	var hits []scored
	for i, id := range m.ord[kind] {
		doc := m.docs[kind][id]
		content := strings.ToLower(doc.Content)
		score := 0
		for _, t := range toks {
			if strings.Contains(content, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{doc: doc, score: score, order: i})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order < hits[j].order
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	docs := make([]Document, len(hits))
	for i, h := range hits {
		docs[i] = h.doc
	}
	return docs, nil
}

// Count returns the number of documents in a collection.
func (m *Memory) Count(_ context.Context, kind Kind) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[kind]), nil
}
