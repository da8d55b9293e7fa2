package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Typed invoice/PO records, one row per document.
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    kind TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    vendor TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT,
    status TEXT NOT NULL,
    content TEXT NOT NULL,
    record JSON NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(kind, doc_id)
);

-- Vector leg of hybrid search via sqlite-vec.
CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(
    doc_rowid INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Lexical leg via FTS5.
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    content,
    vendor,
    content='documents',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- FTS triggers to keep the index in sync.
CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
    INSERT INTO documents_fts(rowid, content, vendor) VALUES (new.id, new.content, new.vendor);
END;
CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, content, vendor) VALUES ('delete', old.id, old.content, old.vendor);
END;
CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, content, vendor) VALUES ('delete', old.id, old.content, old.vendor);
    INSERT INTO documents_fts(rowid, content, vendor) VALUES (new.id, new.content, new.vendor);
END;

-- Indexes
CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(kind, status);
`, embeddingDim)
}
