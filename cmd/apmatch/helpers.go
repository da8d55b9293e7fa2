package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ledgerline/apmatch"
	"github.com/ledgerline/apmatch/store"
)

// loadConfig builds the effective configuration from the optional config
// file plus the root flags.
func loadConfig() (apmatch.Config, error) {
	cfg := apmatch.DefaultConfig()
	if rootFlags.configPath != "" {
		f, err := os.Open(rootFlags.configPath)
		if err != nil {
			return cfg, fmt.Errorf("opening config: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}
	if rootFlags.dbPath != "" {
		cfg.DBPath = rootFlags.dbPath
	}
	if rootFlags.auditPath != "" {
		cfg.AuditPath = rootFlags.auditPath
	}
	return cfg, nil
}

// openStore opens the SQLite document store for the configuration.
func openStore(cfg apmatch.Config) (*store.Store, error) {
	return store.New(cfg.ResolveDBPath(), store.Config{
		EmbeddingDim: cfg.EmbeddingDim,
		WeightVector: cfg.WeightVector,
		WeightFTS:    cfg.WeightFTS,
	})
}
