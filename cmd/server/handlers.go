package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ledgerline/apmatch"
	"github.com/ledgerline/apmatch/audit"
	"github.com/ledgerline/apmatch/ingest"
	"github.com/ledgerline/apmatch/seed"
	"github.com/ledgerline/apmatch/store"
)

type handler struct {
	pipeline apmatch.Pipeline
	docs     *store.Store
	sink     audit.Sink
	registry *ingest.Registry
}

func newHandler(p apmatch.Pipeline, docs *store.Store, sink audit.Sink) *handler {
	return &handler{
		pipeline: p,
		docs:     docs,
		sink:     sink,
		registry: ingest.NewRegistry(),
	}
}

// POST /query
func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	var req struct {
		Query     string `json:"query"`
		SessionID string `json:"session_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.pipeline.ProcessQuery(ctx, req.Query, req.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		slog.Error("query error", "query", req.Query, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /seed
func (h *handler) handleSeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var opts seed.Options
	if r.ContentLength > 0 {
		var req struct {
			Invoices int   `json:"invoices,omitempty"`
			POs      int   `json:"pos,omitempty"`
			Seed     int64 `json:"seed,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		opts = seed.Options{Invoices: req.Invoices, POs: req.POs, Seed: req.Seed}
	}

	invoices, pos, err := seed.Load(ctx, h.docs, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "seeding failed")
		slog.Error("seed error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"invoices": invoices,
		"pos":      pos,
	})
}

// POST /import
func (h *handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	invoices, pos, err := h.registry.Import(ctx, h.docs, absPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "import failed")
		slog.Error("import error", "path", absPath, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":     absPath,
		"invoices": invoices,
		"pos":      pos,
	})
}

// GET /invoices/{id}
func (h *handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	h.handleGetDocument(w, r, store.KindInvoice)
}

// GET /pos/{id}
func (h *handler) handleGetPO(w http.ResponseWriter, r *http.Request) {
	h.handleGetDocument(w, r, store.KindPO)
}

func (h *handler) handleGetDocument(w http.ResponseWriter, r *http.Request, kind store.Kind) {
	id := r.PathValue("id")
	doc, err := h.docs.GetByID(r.Context(), kind, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		slog.Error("document lookup error", "kind", kind, "id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GET /audit-logs?limit=N&session_id=S
func (h *handler) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	var (
		entries []audit.Entry
		err     error
	)
	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		entries, err = h.sink.BySession(sessionID)
	} else {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n < 1 || n > 1000 {
				writeError(w, http.StatusBadRequest, "limit must be within 1..1000")
				return
			}
			limit = n
		}
		entries, err = h.sink.Recent(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read audit log")
		slog.Error("audit log error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.docs.Count(r.Context(), store.KindInvoice)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	pos, _ := h.docs.Count(r.Context(), store.KindPO)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"invoices": invoices,
		"pos":      pos,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
