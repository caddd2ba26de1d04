// Package config defines the JSON-serializable configuration model for the
// churn ETL pipeline. It is intentionally small, explicit, and dependency-free
// so that a run can be described by one file on disk plus two environment
// variables, and passed through the program without additional glue code.
//
// Remote credentials are environment-sourced and never appear in the file:
//
//	SUPABASE_URL  base URL of the remote store's REST endpoint
//	SUPABASE_KEY  service/API key
//
// Their absence is not an error: Load computes RemoteEnabled exactly once and
// the loader degrades to writing a local fallback CSV.
//
// Example pipeline file (trimmed):
//
//	{
//	  "job":     "churn",
//	  "source":  { "path": "data/raw/churn.csv" },
//	  "staging": { "dir": "data/staged", "name": "churn_staged.csv" },
//	  "fallback":{ "dir": "data/loaded" },
//	  "storage": { "kind": "rest", "table": "churn_data" },
//	  "loader":  { "batch_size": 200, "max_retries": 3, "backoff_factor": 2.0 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Defaults applied by Load for fields left empty in the pipeline file.
const (
	DefaultTable         = "churn_data"
	DefaultBatchSize     = 200
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 2.0
	DefaultStagedDir     = "data/staged"
	DefaultStagedName    = "churn_staged.csv"
	DefaultFallbackDir   = "data/loaded"
)

// DefaultSchemaSignatures are the substrings that classify a remote error as a
// schema mismatch. They mirror the remote store's error format (PostgREST
// "PGRST" codes and "Could not find the 'x' column" messages) and are
// configurable because that format is not a stable contract.
var DefaultSchemaSignatures = []string{"Could not find", "PGRST", "column"}

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for logs and metrics grouping.
	Job string `json:"job"`

	// Source locates the raw input CSV.
	Source Source `json:"source"`

	// Staging controls where the transformed dataset is written.
	Staging Staging `json:"staging"`

	// Fallback controls where local-copy CSVs land when the remote store is
	// unavailable or structurally incompatible.
	Fallback Fallback `json:"fallback"`

	// Storage selects and configures the remote store backend.
	Storage Storage `json:"storage"`

	// Loader holds batching and retry knobs.
	Loader Loader `json:"loader"`
}

// Source identifies the raw input file.
type Source struct {
	Path string `json:"path"`
}

// Staging holds the staged-file location. The staged path is Dir/Name.
type Staging struct {
	Dir  string `json:"dir"`
	Name string `json:"name"`
}

// Fallback holds the local-copy directory. The fallback file name is derived
// from the staged basename with a "_localcopy" suffix.
type Fallback struct {
	Dir string `json:"dir"`
}

// Storage selects the remote store backend.
type Storage struct {
	// Kind selects the backend: "rest" (default) or "postgres".
	Kind string `json:"kind"`

	// Table is the remote table name.
	Table string `json:"table"`

	// DSN is the pgx connection string for the "postgres" kind.
	DSN string `json:"dsn"`

	// AutoCreateTable asks the backend to ensure the target table exists
	// before loading. Backends without DDL support skip this, non-fatally.
	AutoCreateTable bool `json:"auto_create_table"`

	// URL and Key are environment-sourced (SUPABASE_URL / SUPABASE_KEY) and
	// never read from the pipeline file.
	URL string `json:"-"`
	Key string `json:"-"`

	// RemoteEnabled is computed once by Load: false means the loader runs in
	// local-fallback mode and performs no network calls.
	RemoteEnabled bool `json:"-"`
}

// Loader holds batching and retry configuration.
type Loader struct {
	BatchSize     int     `json:"batch_size"`
	MaxRetries    int     `json:"max_retries"`
	BackoffFactor float64 `json:"backoff_factor"`

	// SchemaSignatures overrides DefaultSchemaSignatures when non-empty.
	SchemaSignatures []string `json:"schema_signatures"`
}

// Load reads the pipeline file at path (skipped when path is empty), applies
// defaults, pulls credentials from the environment, and computes
// Storage.RemoteEnabled.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return p, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&p); err != nil {
			return p, fmt.Errorf("decode config: %w", err)
		}
	}
	applyDefaults(&p)

	p.Storage.URL = os.Getenv("SUPABASE_URL")
	p.Storage.Key = os.Getenv("SUPABASE_KEY")
	switch p.Storage.Kind {
	case "postgres":
		p.Storage.RemoteEnabled = p.Storage.DSN != ""
	default:
		p.Storage.RemoteEnabled = p.Storage.URL != "" && p.Storage.Key != ""
	}
	return p, nil
}

func applyDefaults(p *Pipeline) {
	if p.Job == "" {
		p.Job = "churn_etl"
	}
	if p.Staging.Dir == "" {
		p.Staging.Dir = DefaultStagedDir
	}
	if p.Staging.Name == "" {
		p.Staging.Name = DefaultStagedName
	}
	if p.Fallback.Dir == "" {
		p.Fallback.Dir = DefaultFallbackDir
	}
	if p.Storage.Kind == "" {
		p.Storage.Kind = "rest"
	}
	if p.Storage.Table == "" {
		p.Storage.Table = DefaultTable
	}
	if p.Loader.BatchSize == 0 {
		p.Loader.BatchSize = DefaultBatchSize
	}
	if p.Loader.MaxRetries == 0 {
		p.Loader.MaxRetries = DefaultMaxRetries
	}
	if p.Loader.BackoffFactor == 0 {
		p.Loader.BackoffFactor = DefaultBackoffFactor
	}
	if len(p.Loader.SchemaSignatures) == 0 {
		p.Loader.SchemaSignatures = append([]string(nil), DefaultSchemaSignatures...)
	}
}

// StagedPath returns the full staged-file path for the pipeline.
func (p Pipeline) StagedPath() string {
	return filepath.Join(p.Staging.Dir, p.Staging.Name)
}
