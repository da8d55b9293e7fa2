package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Config holds store tuning knobs.
type Config struct {
	EmbeddingDim int     // feature-hash vector dimension (default 256)
	WeightVector float64 // RRF weight for the vector leg (default 1.0)
	WeightFTS    float64 // RRF weight for the FTS leg (default 1.0)
}

// Store is the SQLite-backed document store. It satisfies the retrieval
// DocumentStore contract: direct lookup by (kind, id) and ranked similarity
// search per collection.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New opens (or creates) a SQLite database at the given path and initialises
// the schema including the sqlite-vec and FTS5 virtual tables. The FTS5
// module requires building with -tags sqlite_fts5.
func New(dbPath string, cfg Config) (*Store, error) {
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 256
	}
	if cfg.WeightVector == 0 {
		cfg.WeightVector = 1.0
	}
	if cfg.WeightFTS == 0 {
		cfg.WeightFTS = 1.0
	}

	// Ensure parent directory exists.
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging database: %v", ErrUnavailable, err)
	}

	if _, err := db.Exec(schemaSQL(cfg.EmbeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, cfg: cfg}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// PutInvoice validates and upserts an invoice, refreshing its rendered
// content and embedding.
func (s *Store) PutInvoice(ctx context.Context, inv Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	doc := DocumentFromInvoice(&inv)
	return s.put(ctx, doc, inv.Currency)
}

// PutPurchaseOrder validates and upserts a purchase order.
func (s *Store) PutPurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	if err := po.Validate(); err != nil {
		return err
	}
	doc := DocumentFromPO(&po)
	return s.put(ctx, doc, po.Currency)
}

func (s *Store) put(ctx context.Context, doc Document, currency string) error {
	var record any = doc.Invoice
	if doc.Kind == KindPO {
		record = doc.PO
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (kind, doc_id, vendor, amount, currency, status, content, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, doc_id) DO UPDATE SET
			vendor = excluded.vendor,
			amount = excluded.amount,
			currency = excluded.currency,
			status = excluded.status,
			content = excluded.content,
			record = excluded.record,
			updated_at = CURRENT_TIMESTAMP
	`, doc.Kind, doc.ID, doc.Vendor, doc.Amount, currency, doc.Status, doc.Content, string(recordJSON))
	if err != nil {
		return err
	}

	// LastInsertId is unreliable after a conflict-update (it reports the
	// connection's last successful insert, not this row), so the rowid is
	// always re-queried.
	var rowid int64
	row := tx.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE kind = ? AND doc_id = ?", doc.Kind, doc.ID)
	if err := row.Scan(&rowid); err != nil {
		return err
	}

	emb := embedText(doc.Content, s.cfg.EmbeddingDim)
	if _, err := tx.ExecContext(ctx, "DELETE FROM vec_documents WHERE doc_rowid = ?", rowid); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO vec_documents (doc_rowid, embedding) VALUES (?, ?)",
		rowid, serializeFloat32(emb)); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves one document by its business identifier.
// Returns ErrNotFound on a miss.
func (s *Store) GetByID(ctx context.Context, kind Kind, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, doc_id, vendor, amount, status, content, record
		FROM documents WHERE kind = ? AND doc_id = ?
	`, kind, strings.ToUpper(id))

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Search runs hybrid retrieval over one collection: vector KNN over the
// feature-hash embeddings and FTS5 BM25 over the rendered content, fused
// with weighted reciprocal rank fusion. Returns at most k documents in rank
// order; an empty slice when nothing matches.
func (s *Store) Search(ctx context.Context, kind Kind, query string, k int) ([]Document, error) {
	if k <= 0 {
		k = 3
	}

	vecHits, err := s.vectorSearch(ctx, kind, query, k)
	if err != nil {
		return nil, err
	}
	ftsHits, err := s.ftsSearch(ctx, kind, query, k)
	if err != nil {
		return nil, err
	}

	ranked := fuseRRF(vecHits, ftsHits, s.cfg.WeightVector, s.cfg.WeightFTS, k)
	docs := make([]Document, 0, len(ranked))
	for _, id := range ranked {
		doc, err := s.GetByID(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, kind Kind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE kind = ?", kind).Scan(&n)
	return n, err
}

// vectorSearch returns doc_ids in KNN order. The vec0 table has no kind
// column, so it over-fetches and filters through the join.
func (s *Store) vectorSearch(ctx context.Context, kind Kind, query string, k int) ([]string, error) {
	emb := embedText(query, s.cfg.EmbeddingDim)

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.doc_id, d.kind
		FROM vec_documents v
		JOIN documents d ON d.id = v.doc_rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(emb), k*4)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var gotKind Kind
		if err := rows.Scan(&id, &gotKind); err != nil {
			return nil, err
		}
		if gotKind != kind {
			continue
		}
		ids = append(ids, id)
		if len(ids) >= k {
			break
		}
	}
	return ids, rows.Err()
}

// ftsSearch returns doc_ids in BM25 order.
func (s *Store) ftsSearch(ctx context.Context, kind Kind, query string, k int) ([]string, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.doc_id
		FROM documents_fts f
		JOIN documents d ON d.id = f.rowid
		WHERE documents_fts MATCH ? AND d.kind = ?
		ORDER BY f.rank
		LIMIT ?
	`, match, kind, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ftsQuery builds a safe OR-of-tokens MATCH expression from free text.
// FTS5 treats hyphens as separators, so identifier tokens are split.
func ftsQuery(query string) string {
	toks := tokenize(query)
	seen := make(map[string]bool, len(toks))
	var terms []string
	for _, t := range toks {
		t = strings.ReplaceAll(t, "-", " ")
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, `"`+t+`"`)
	}
	return strings.Join(terms, " OR ")
}

const rrfK = 60 // RRF constant (standard value from literature)

// fuseRRF combines the two ranked id lists with weighted reciprocal rank
// fusion: score = sum(weight_i / (rrfK + rank_i)). Ties break on first
// appearance so results stay deterministic.
func fuseRRF(vecIDs, ftsIDs []string, weightVec, weightFTS float64, maxResults int) []string {
	type fusedEntry struct {
		id    string
		score float64
		order int
	}

	fused := make(map[string]*fusedEntry)
	order := 0
	add := func(ids []string, weight float64) {
		for rank, id := range ids {
			entry, ok := fused[id]
			if !ok {
				entry = &fusedEntry{id: id, order: order}
				order++
				fused[id] = entry
			}
			entry.score += weight / float64(rrfK+rank+1)
		}
	}
	add(vecIDs, weightVec)
	add(ftsIDs, weightFTS)

	entries := make([]*fusedEntry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].order < entries[j].order
	})

	if maxResults > 0 && len(entries) > maxResults {
		entries = entries[:maxResults]
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var doc Document
	var recordJSON string
	if err := row.Scan(&doc.Kind, &doc.ID, &doc.Vendor, &doc.Amount,
		&doc.Status, &doc.Content, &recordJSON); err != nil {
		return nil, err
	}

	switch doc.Kind {
	case KindInvoice:
		var inv Invoice
		if err := json.Unmarshal([]byte(recordJSON), &inv); err != nil {
			return nil, fmt.Errorf("%w: decoding invoice %s: %v", ErrValidation, doc.ID, err)
		}
		doc.Invoice = &inv
	case KindPO:
		var po PurchaseOrder
		if err := json.Unmarshal([]byte(recordJSON), &po); err != nil {
			return nil, fmt.Errorf("%w: decoding po %s: %v", ErrValidation, doc.ID, err)
		}
		doc.PO = &po
	}
	return &doc, nil
}
