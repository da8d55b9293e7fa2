package apmatch

import (
	"errors"

	"github.com/ledgerline/apmatch/store"
)

var (
	// ErrNotFound is returned when a direct identifier lookup has no
	// matching record. Non-fatal: the orchestrator falls back to search.
	ErrNotFound = store.ErrNotFound

	// ErrStoreUnavailable is returned when the document store cannot be
	// reached. Non-fatal: the affected action degrades to empty evidence.
	ErrStoreUnavailable = store.ErrUnavailable

	// ErrValidation is returned for a malformed record field (for example a
	// non-numeric amount). The affected computation degrades to a flagged
	// issue instead of aborting.
	ErrValidation = store.ErrValidation

	// ErrPipeline is returned when no QueryResult can be constructed at all.
	// It is the only failure that escapes ProcessQuery.
	ErrPipeline = errors.New("apmatch: pipeline failure")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("apmatch: invalid configuration")
)
