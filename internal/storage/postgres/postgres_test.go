package postgres

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"churnetl/internal/dataset"
	"churnetl/internal/storage"
)

func TestIdentQuoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"churn_data", `"churn_data"`},
		{`weird"name`, `"weird""name"`},
	}
	for _, tt := range tests {
		if got := pgIdent(tt.in); got != tt.want {
			t.Fatalf("pgIdent(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if got := pgFQN("public.churn_data"); got != `"public"."churn_data"` {
		t.Fatalf("pgFQN = %s", got)
	}
	if got := pgFQN("churn_data"); got != `"churn_data"` {
		t.Fatalf("pgFQN = %s", got)
	}
}

func TestSplitFQN(t *testing.T) {
	t.Parallel()

	if got, want := splitFQN("public.churn_data"), (pgx.Identifier{"public", "churn_data"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitFQN = %v, want %v", got, want)
	}
	if got, want := splitFQN("churn_data"), (pgx.Identifier{"churn_data"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitFQN = %v, want %v", got, want)
	}
}

func TestInferSQLType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v    any
		want string
	}{
		{int64(1), "INTEGER"},
		{3, "INTEGER"},
		{29.85, "DOUBLE PRECISION"},
		{"Yes", "TEXT"},
		{nil, "TEXT"},
	}
	for _, tt := range tests {
		if got := inferSQLType(tt.v); got != tt.want {
			t.Fatalf("inferSQLType(%v) = %s, want %s", tt.v, got, tt.want)
		}
	}
}

func TestSortedColumns(t *testing.T) {
	t.Parallel()

	rec := dataset.Record{"tenure": "1", "churn": "No", "monthlycharges": "2"}
	if got, want := sortedColumns(rec), []string{"churn", "monthlycharges", "tenure"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("sortedColumns = %v, want %v", got, want)
	}
}

func TestWrapPgError(t *testing.T) {
	t.Parallel()

	if wrapPgError(nil) != nil {
		t.Fatalf("wrapPgError(nil) != nil")
	}

	plain := errors.New("dial tcp: connection refused")
	if got := wrapPgError(plain); got != plain {
		t.Fatalf("non-pg error rewritten: %v", got)
	}

	pgErr := &pgconn.PgError{
		Code:    "42703",
		Message: `column "tenure_group" of relation "churn_data" does not exist`,
	}
	wrapped := wrapPgError(fmt.Errorf("exec: %w", pgErr))
	var se *storage.Error
	if !errors.As(wrapped, &se) {
		t.Fatalf("wrapped type = %T, want *storage.Error", wrapped)
	}
	if se.Code != "42703" {
		t.Fatalf("code = %q, want 42703", se.Code)
	}
	// The loader's default classifier keys on the word "column".
	if !strings.Contains(se.Message, "column") {
		t.Fatalf("message = %q, missing %q", se.Message, "column")
	}
}
