// Package loader moves a staged dataset into the remote store in fixed-size
// batches, tolerating transient failures and degrading to a local CSV copy on
// permanent ones.
//
// Per-batch state machine:
//
//	PENDING → ATTEMPTING → { SUCCEEDED, SCHEMA_ABORT, EXHAUSTED }
//
// A schema mismatch on any batch abandons all remaining batches and writes the
// ENTIRE transformed dataset (not just the failed batch) to the fallback file;
// the run then ends as a recovered, non-crashing failure. A batch that spends
// its retry budget on transient errors is logged and skipped, and the run
// continues with the remaining batches.
package loader

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"churnetl/internal/colnorm"
	"churnetl/internal/dataset"
	"churnetl/internal/storage"
)

// BatchState tracks one batch through the loader's state machine.
type BatchState int

const (
	StatePending BatchState = iota
	StateAttempting
	StateSucceeded
	StateSchemaAbort
	StateExhausted
)

func (s BatchState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateAttempting:
		return "ATTEMPTING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateSchemaAbort:
		return "SCHEMA_ABORT"
	case StateExhausted:
		return "EXHAUSTED"
	default:
		return fmt.Sprintf("BatchState(%d)", int(s))
	}
}

// Summary reports what one load run did.
type Summary struct {
	TotalRows     int
	Batches       int
	BatchesOK     int
	BatchesFailed int // EXHAUSTED batches that were skipped
	RowsInserted  int
	SchemaAborted bool
	LocalMode     bool   // remote store not configured; no network attempted
	FallbackPath  string // non-empty when a local copy was written
}

// Loader loads a staged CSV into the remote store.
//
// Store may be nil, which means the remote side is unconfigured: the loader
// writes the fallback copy immediately and never attempts a network call.
type Loader struct {
	Store           storage.Store
	Table           string
	BatchSize       int
	FallbackDir     string
	AutoCreateTable bool
	Policy          Policy
}

// Run executes the load for the staged file at stagedPath.
//
// Errors are returned only for local problems (missing staged file, column
// collision, bad batch size). Remote failures are absorbed into the Summary:
// schema aborts and exhausted batches end the run recovered, not crashed.
func (l *Loader) Run(ctx context.Context, stagedPath string) (Summary, error) {
	var sum Summary

	d, err := dataset.ReadCSV(stagedPath)
	if err != nil {
		log.Printf("loader: cannot read staged file %s: %v (run transform first)", stagedPath, err)
		return sum, fmt.Errorf("read staged dataset: %w", err)
	}
	sum.TotalRows = len(d.Rows)

	// The column mapping is built once and fixed for the whole run. A
	// collision would silently corrupt inserts downstream, so it fails fast.
	mapping, err := colnorm.BuildMapping(d.Columns)
	if err != nil {
		return sum, err
	}
	logMappingSample(d.Columns, mapping)
	mapped := d.Renamed(mapping)

	fallback := FallbackPath(l.FallbackDir, stagedPath)

	if l.Store == nil {
		log.Printf("loader: remote store not configured, writing local copy path=%s", fallback)
		if err := mapped.WriteCSV(fallback); err != nil {
			return sum, fmt.Errorf("write local copy: %w", err)
		}
		sum.LocalMode = true
		sum.FallbackPath = fallback
		return sum, nil
	}

	if l.AutoCreateTable {
		l.ensureTable(ctx, mapped)
	}

	batches, err := mapped.Batches(l.BatchSize)
	if err != nil {
		return sum, err
	}
	sum.Batches = len(batches)
	log.Printf("loader: loading rows=%d batches=%d batch_size=%d table=%s",
		sum.TotalRows, sum.Batches, l.BatchSize, l.Table)

	for i, batch := range batches {
		state := StateAttempting
		err := l.Policy.Do(func() error {
			return l.Store.Insert(ctx, l.Table, batch)
		})
		switch {
		case err == nil:
			state = StateSucceeded
			sum.BatchesOK++
			sum.RowsInserted += len(batch)
			log.Printf("loader: batch=%d/%d state=%s rows=%d total_inserted=%d",
				i+1, sum.Batches, state, len(batch), sum.RowsInserted)

		case IsSchemaAbort(err):
			state = StateSchemaAbort
			sum.SchemaAborted = true
			log.Printf("loader: batch=%d/%d state=%s err=%v", i+1, sum.Batches, state, err)
			log.Printf("loader: remote schema issue detected, writing local copy and aborting remote inserts")
			if werr := mapped.WriteCSV(fallback); werr != nil {
				return sum, fmt.Errorf("write local copy after schema abort: %w", werr)
			}
			sum.FallbackPath = fallback
			log.Printf("loader: wrote local copy path=%s rows=%d", fallback, sum.TotalRows)
			return sum, nil

		default:
			state = StateExhausted
			sum.BatchesFailed++
			log.Printf("loader: batch=%d/%d state=%s skipping err=%v", i+1, sum.Batches, state, err)
		}
	}

	log.Printf("loader: finished table=%s inserted=%d batches_ok=%d batches_skipped=%d",
		l.Table, sum.RowsInserted, sum.BatchesOK, sum.BatchesFailed)
	return sum, nil
}

// ensureTable creates the destination table when the backend supports DDL.
// Failures are logged and the load continues; inserts will surface any real
// structural problem.
func (l *Loader) ensureTable(ctx context.Context, d *dataset.Dataset) {
	te, ok := l.Store.(storage.TableEnsurer)
	if !ok {
		log.Printf("loader: backend has no DDL support, skipping table creation table=%s", l.Table)
		return
	}
	var sample dataset.Record
	if len(d.Rows) > 0 {
		sample = d.Rows[0]
	} else {
		sample = dataset.Record{}
	}
	if err := te.EnsureTable(ctx, l.Table, d.Columns, sample); err != nil {
		log.Printf("loader: ensure table failed (continuing, inserts may fail): %v", err)
		return
	}
	log.Printf("loader: table ensured table=%s", l.Table)
}

// FallbackPath derives the local-copy location for a staged file:
// <dir>/<staged-basename>_localcopy.csv.
func FallbackPath(dir, stagedPath string) string {
	base := filepath.Base(stagedPath)
	base = strings.TrimSuffix(base, ".csv") + "_localcopy.csv"
	return filepath.Join(dir, base)
}

// logMappingSample prints the first few header mappings for debugging, in
// source column order.
func logMappingSample(columns []string, mapping map[string]string) {
	const maxSample = 12
	n := len(columns)
	if n > maxSample {
		n = maxSample
	}
	pairs := make([]string, 0, n)
	for _, c := range columns[:n] {
		pairs = append(pairs, c+"->"+mapping[c])
	}
	log.Printf("loader: header mapping sample: %s", strings.Join(pairs, " "))
}
