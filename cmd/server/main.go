// Command server exposes the invoice matching pipeline over HTTP.
//
// The SQLite store needs the FTS5 build tag:
//
//	go run -tags sqlite_fts5 ./cmd/server -addr :8080
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ledgerline/apmatch"
	"github.com/ledgerline/apmatch/audit"
	"github.com/ledgerline/apmatch/store"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := apmatch.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	// Override from environment variables.
	if v := os.Getenv("APMATCH_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("APMATCH_AUDIT_PATH"); v != "" {
		cfg.AuditPath = v
	}
	if v := os.Getenv("APMATCH_STORAGE_DIR"); v != "" {
		cfg.StorageDir = v
	}
	if v := os.Getenv("APMATCH_INVOICE_SEARCH_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InvoiceSearchK = n
		}
	}
	if v := os.Getenv("APMATCH_PO_SEARCH_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.POSearchK = n
		}
	}
	if v := os.Getenv("APMATCH_APPROVAL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ApprovalThreshold = n
		}
	}

	apiKey := os.Getenv("APMATCH_API_KEY")
	corsOrigins := os.Getenv("APMATCH_CORS_ORIGINS")

	// The store and audit sink are built here rather than inside the
	// pipeline so the document and seeding endpoints can reach them.
	docs, err := store.New(cfg.ResolveDBPath(), store.Config{
		EmbeddingDim: cfg.EmbeddingDim,
		WeightVector: cfg.WeightVector,
		WeightFTS:    cfg.WeightFTS,
	})
	if err != nil {
		slog.Error("opening document store", "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	sink, err := audit.NewFileSink(cfg.ResolveAuditPath())
	if err != nil {
		slog.Error("opening audit log", "error", err)
		os.Exit(1)
	}

	pipeline, err := apmatch.New(cfg,
		apmatch.WithDocumentStore(docs),
		apmatch.WithAuditSink(sink),
	)
	if err != nil {
		slog.Error("creating pipeline", "error", err)
		os.Exit(1)
	}

	h := newHandler(pipeline, docs, sink)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /query", h.handleQuery)
	mux.HandleFunc("POST /seed", h.handleSeed)
	mux.HandleFunc("POST /import", h.handleImport)
	mux.HandleFunc("GET /invoices/{id}", h.handleGetInvoice)
	mux.HandleFunc("GET /pos/{id}", h.handleGetPO)
	mux.HandleFunc("GET /audit-logs", h.handleAuditLogs)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
