// Package postgres implements storage.Store directly against Postgres using
// pgx v5. Supabase projects expose a plain Postgres DSN, so this backend is a
// lower-level alternative to the REST path: inserts go through CopyFrom and
// the exact count is a COUNT(*) query.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"churnetl/internal/dataset"
	"churnetl/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return NewStore(ctx, cfg.DSN)
	})
}

// Store is a pgx-backed implementation of storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a pgxpool against dsn.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Insert copies recs into the table. Column order is derived from the first
// record's sorted keys; every record in one call must share the same key set.
func (s *Store) Insert(ctx context.Context, table string, recs []dataset.Record) error {
	if len(recs) == 0 {
		return nil
	}
	cols := sortedColumns(recs[0])
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	_, err := s.pool.CopyFrom(ctx, splitFQN(table), cols, pgx.CopyFromRows(rows))
	return wrapPgError(err)
}

// Count returns the exact row count of the table.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgFQN(table)).Scan(&n)
	if err != nil {
		return 0, wrapPgError(err)
	}
	return n, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// EnsureTable creates the destination table when it does not exist, inferring
// column types from the sample record. Implements storage.TableEnsurer.
func (s *Store) EnsureTable(ctx context.Context, table string, columns []string, sample dataset.Record) error {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, `"id" BIGSERIAL PRIMARY KEY`)
	for _, c := range columns {
		defs = append(defs, pgIdent(c)+" "+inferSQLType(sample[c]))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pgFQN(table), strings.Join(defs, ", "))
	_, err := s.pool.Exec(ctx, ddl)
	return wrapPgError(err)
}

// inferSQLType maps a Go cell value onto a Postgres column type. nil (an
// all-null sample column) falls back to TEXT.
func inferSQLType(v any) string {
	switch v.(type) {
	case int64, int:
		return "INTEGER"
	case float64:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// wrapPgError converts pgx errors into *storage.Error, keeping the SQLSTATE
// as the code so the loader's classifier sees messages like
// `column "x" of relation "t" does not exist` unchanged.
func wrapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg := pgErr.Message
		if pgErr.Detail != "" {
			msg += " (" + pgErr.Detail + ")"
		}
		return &storage.Error{Code: pgErr.SQLState(), Message: msg}
	}
	return err
}

func sortedColumns(rec dataset.Record) []string {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.churn_data" to
// "public"."churn_data". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
