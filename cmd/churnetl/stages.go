package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"churnetl/internal/dataset"
	"churnetl/internal/loader"
	"churnetl/internal/metrics"
	"churnetl/internal/storage"
	"churnetl/internal/transformer"
	"churnetl/internal/validator"
)

// Stage failures are printed, never fatal: a half-finished pipeline run is
// still a valid run, and later stages report what earlier stages left behind.
// Only configuration problems make the process exit non-zero.

func newTransformCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Read the raw CSV and write the staged dataset",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			reportStage("transform", a.transform())
			return nil
		},
	}
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the staged dataset into the remote store in batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reportStage("load", a.load(cmd.Context()))
			return nil
		},
	}
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the staged dataset against the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reportStage("validate", a.validate(cmd.Context()))
			return nil
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run transform, load, and validate in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reportStage("transform", a.transform())
			reportStage("load", a.load(cmd.Context()))
			reportStage("validate", a.validate(cmd.Context()))
			return nil
		},
	}
}

func reportStage(stage string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", stage, err)
	}
}

func (a *app) transform() error {
	start := time.Now()
	staged, err := transformer.Run(a.cfg.Source.Path, a.cfg.StagedPath())
	metrics.RecordStage(a.cfg.Job, "transform", err, time.Since(start))
	if err != nil {
		return err
	}
	if sum, cerr := dataset.Checksum(staged); cerr == nil {
		log.Printf("transform: staged_checksum=%016x path=%s", sum, staged)
	}
	return nil
}

func (a *app) load(ctx context.Context) error {
	start := time.Now()

	store := a.openStore(ctx)
	if store != nil {
		defer store.Close()
	}

	l := &loader.Loader{
		Store:           store,
		Table:           a.cfg.Storage.Table,
		BatchSize:       a.cfg.Loader.BatchSize,
		FallbackDir:     a.cfg.Fallback.Dir,
		AutoCreateTable: a.cfg.Storage.AutoCreateTable,
		Policy: loader.Policy{
			MaxRetries:    a.cfg.Loader.MaxRetries,
			BackoffFactor: a.cfg.Loader.BackoffFactor,
			Classify:      loader.SignatureClassifier(a.cfg.Loader.SchemaSignatures),
		},
	}
	sum, err := l.Run(ctx, a.cfg.StagedPath())
	metrics.RecordStage(a.cfg.Job, "load", err, time.Since(start))
	if err != nil {
		return err
	}

	metrics.RecordRows(a.cfg.Job, "staged", int64(sum.TotalRows))
	metrics.RecordRows(a.cfg.Job, "inserted", int64(sum.RowsInserted))
	metrics.RecordBatches(a.cfg.Job, "ok", int64(sum.BatchesOK))
	metrics.RecordBatches(a.cfg.Job, "skipped", int64(sum.BatchesFailed))
	if sum.SchemaAborted {
		metrics.RecordBatches(a.cfg.Job, "schema_abort", 1)
	}
	if sum.FallbackPath != "" {
		metrics.RecordRows(a.cfg.Job, "fallback", int64(sum.TotalRows))
	}
	return nil
}

func (a *app) validate(ctx context.Context) error {
	start := time.Now()

	store := a.openStore(ctx)
	if store != nil {
		defer store.Close()
	}

	rep, err := validator.Run(ctx, a.cfg.StagedPath(), store, a.cfg.Storage.Table)
	metrics.RecordStage(a.cfg.Job, "validate", err, time.Since(start))
	if err != nil {
		return err
	}
	rep.Print()
	return nil
}

// openStore builds the configured storage backend, or nil when the remote
// side is unconfigured or unreachable. A nil store puts the loader in
// local-fallback mode and leaves the validator without a remote count; either
// way the stage still runs.
func (a *app) openStore(ctx context.Context) storage.Store {
	if !a.cfg.Storage.RemoteEnabled {
		return nil
	}
	store, err := storage.New(ctx, storage.Config{
		Kind:  a.cfg.Storage.Kind,
		URL:   a.cfg.Storage.URL,
		Key:   a.cfg.Storage.Key,
		DSN:   a.cfg.Storage.DSN,
		Table: a.cfg.Storage.Table,
	})
	if err != nil {
		log.Printf("storage: cannot open kind=%s: %v (continuing without remote store)", a.cfg.Storage.Kind, err)
		return nil
	}
	return store
}
