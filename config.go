package apmatch

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all configuration for the apmatch pipeline.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.apmatch/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "apmatch".
	DBName string `json:"db_name" yaml:"db_name"`

	// AuditPath is the full path to the JSONL audit log.
	// If empty, defaults to <db dir>/audit.jsonl.
	AuditPath string `json:"audit_path" yaml:"audit_path"`

	// StorageDir controls where data files are created when the explicit
	// paths are not set. Options: "home" (default) uses ~/.apmatch/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// Retrieval fan-out per collection for similarity fallback.
	InvoiceSearchK int `json:"invoice_search_k" yaml:"invoice_search_k"`
	POSearchK      int `json:"po_search_k" yaml:"po_search_k"`

	// Hybrid search weights for RRF fusion inside the store.
	WeightVector float64 `json:"weight_vector" yaml:"weight_vector"`
	WeightFTS    float64 `json:"weight_fts" yaml:"weight_fts"`

	// Minimum verification confidence for auto-approval.
	ApprovalThreshold int `json:"approval_threshold" yaml:"approval_threshold"`

	// Embedding dimension for the feature-hash vectors.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// DefaultConfig returns a Config with the standard defaults.
// Data lives in ~/.apmatch/ unless overridden.
func DefaultConfig() Config {
	return Config{
		DBName:            "apmatch",
		StorageDir:        "home",
		InvoiceSearchK:    3,
		POSearchK:         2,
		WeightVector:      1.0,
		WeightFTS:         1.0,
		ApprovalThreshold: 70,
		EmbeddingDim:      256,
	}
}

// Validate checks the numeric fields. Zero values are allowed and replaced
// with defaults downstream; negative values are rejected here.
func (c *Config) Validate() error {
	if c.InvoiceSearchK < 0 || c.POSearchK < 0 {
		return fmt.Errorf("%w: search fan-out must not be negative", ErrInvalidConfig)
	}
	if c.WeightVector < 0 || c.WeightFTS < 0 {
		return fmt.Errorf("%w: fusion weights must not be negative", ErrInvalidConfig)
	}
	if c.ApprovalThreshold < 0 || c.ApprovalThreshold > 100 {
		return fmt.Errorf("%w: approval threshold must be within 0..100", ErrInvalidConfig)
	}
	if c.EmbeddingDim < 0 {
		return fmt.Errorf("%w: embedding dimension must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ResolveDBPath computes the final database path from config fields.
func (c *Config) ResolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "apmatch"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".apmatch", name+".db")
	}
}

// ResolveAuditPath computes the audit log path, defaulting to a sibling of
// the database file.
func (c *Config) ResolveAuditPath() string {
	if c.AuditPath != "" {
		return c.AuditPath
	}
	return filepath.Join(filepath.Dir(c.ResolveDBPath()), "audit.jsonl")
}
