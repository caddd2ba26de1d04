// Package storage contains the backend-agnostic contract for the remote row
// store plus a factory registry in which concrete backends install themselves.
//
// The rest of the pipeline depends only on Store; backend-specific wiring
// lives in subpackages (rest, postgres) and is enabled by importing
// storage/all for side effects.
package storage

import (
	"context"
	"fmt"

	"churnetl/internal/dataset"
)

// Store is the minimal interface the loader and validator need from the
// remote row store.
type Store interface {
	// Insert appends the records to the named table in one call. Records are
	// column-name keyed; keys are expected to match the remote schema exactly.
	Insert(ctx context.Context, table string, recs []dataset.Record) error

	// Count returns the exact number of rows in the named table.
	Count(ctx context.Context, table string) (int64, error)

	// Close releases backend resources.
	Close()
}

// TableEnsurer is an optional interface for backends that can create the
// destination table. The loader probes for it when auto_create_table is set;
// backends without DDL support simply don't implement it.
type TableEnsurer interface {
	EnsureTable(ctx context.Context, table string, columns []string, sample dataset.Record) error
}

// Error is a structured error returned by the remote store. Code carries the
// remote API's error code (e.g. a PostgREST "PGRST204"); Message is the
// human-readable part.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("remote store: %s", e.Message)
	}
	return fmt.Sprintf("remote store %s: %s", e.Code, e.Message)
}

// Config carries everything a backend factory may need. Fields irrelevant to
// a given kind are ignored by it.
type Config struct {
	Kind  string // backend selector, e.g. "rest" or "postgres"
	URL   string // rest: base URL of the REST endpoint
	Key   string // rest: API key
	DSN   string // postgres: pgx connection string
	Table string // default target table
}
