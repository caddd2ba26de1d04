package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Pipeline decoding tests
// -----------------------------------------------------------------------------
//
// These tests validate that the top-level Pipeline JSON structure decodes into
// the intended Go struct graph. The goal is to ensure the JSON schema used in
// pipeline files (configs/pipelines/*.json) maps cleanly to the Go types.

func TestPipeline_Decode(t *testing.T) {
	t.Parallel()

	const js = `{
	  "job": "churn_etl",
	  "source": { "path": "data/raw/customer_churn.csv" },
	  "staging": { "dir": "data/staged", "name": "churn_staged.csv" },
	  "fallback": { "dir": "data/loaded" },
	  "storage": {
	    "kind": "rest",
	    "table": "churn_data",
	    "auto_create_table": true
	  },
	  "loader": {
	    "batch_size": 200,
	    "max_retries": 3,
	    "backoff_factor": 2.0,
	    "schema_signatures": ["Could not find", "PGRST", "column"]
	  }
	}`

	var p Pipeline
	if err := json.Unmarshal([]byte(js), &p); err != nil {
		t.Fatalf("json.Unmarshal(Pipeline): %v", err)
	}

	if p.Job != "churn_etl" {
		t.Fatalf("job = %q, want churn_etl", p.Job)
	}
	if p.Source.Path != "data/raw/customer_churn.csv" {
		t.Fatalf("source.path = %q, want data/raw/customer_churn.csv", p.Source.Path)
	}
	if p.Staging.Dir != "data/staged" || p.Staging.Name != "churn_staged.csv" {
		t.Fatalf("staging decoded = %#v", p.Staging)
	}
	if p.Fallback.Dir != "data/loaded" {
		t.Fatalf("fallback.dir = %q, want data/loaded", p.Fallback.Dir)
	}
	if p.Storage.Kind != "rest" || p.Storage.Table != "churn_data" || !p.Storage.AutoCreateTable {
		t.Fatalf("storage decoded = %#v", p.Storage)
	}
	if p.Loader.BatchSize != 200 || p.Loader.MaxRetries != 3 || p.Loader.BackoffFactor != 2.0 {
		t.Fatalf("loader decoded = %#v", p.Loader)
	}
	if want := []string{"Could not find", "PGRST", "column"}; !reflect.DeepEqual(p.Loader.SchemaSignatures, want) {
		t.Fatalf("schema_signatures = %v, want %v", p.Loader.SchemaSignatures, want)
	}
}

// TestPipeline_CredentialsNeverSerialized guards the json:"-" tags: the
// environment-sourced credentials must not round-trip through a config file.
func TestPipeline_CredentialsNeverSerialized(t *testing.T) {
	t.Parallel()

	var p Pipeline
	js := `{"storage": {"kind": "rest", "url": "https://x", "key": "secret"}}`
	if err := json.Unmarshal([]byte(js), &p); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if p.Storage.URL != "" || p.Storage.Key != "" {
		t.Fatalf("credentials decoded from file: url=%q key=%q", p.Storage.URL, p.Storage.Key)
	}

	p.Storage.Key = "secret"
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if got := string(out); strings.Contains(got, "secret") {
		t.Fatalf("marshaled config leaks credentials: %s", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if p.Storage.Kind != "rest" {
		t.Fatalf("default storage.kind = %q, want rest", p.Storage.Kind)
	}
	if p.Storage.Table != DefaultTable {
		t.Fatalf("default table = %q, want %q", p.Storage.Table, DefaultTable)
	}
	if p.Loader.BatchSize != DefaultBatchSize {
		t.Fatalf("default batch_size = %d, want %d", p.Loader.BatchSize, DefaultBatchSize)
	}
	if p.Loader.MaxRetries != DefaultMaxRetries {
		t.Fatalf("default max_retries = %d, want %d", p.Loader.MaxRetries, DefaultMaxRetries)
	}
	if p.Loader.BackoffFactor != DefaultBackoffFactor {
		t.Fatalf("default backoff_factor = %v, want %v", p.Loader.BackoffFactor, DefaultBackoffFactor)
	}
	if !reflect.DeepEqual(p.Loader.SchemaSignatures, DefaultSchemaSignatures) {
		t.Fatalf("default schema_signatures = %v, want %v", p.Loader.SchemaSignatures, DefaultSchemaSignatures)
	}
	if got, want := p.StagedPath(), filepath.Join(DefaultStagedDir, DefaultStagedName); got != want {
		t.Fatalf("StagedPath() = %q, want %q", got, want)
	}
	if p.Fallback.Dir != DefaultFallbackDir {
		t.Fatalf("default fallback.dir = %q, want %q", p.Fallback.Dir, DefaultFallbackDir)
	}
}

// TestLoad_RemoteEnabled covers the one-time remote/local decision for both
// backends.
func TestLoad_RemoteEnabled(t *testing.T) {
	tests := []struct {
		name string
		url  string
		key  string
		file string
		want bool
	}{
		{name: "rest with both credentials", url: "https://proj.supabase.co", key: "k", want: true},
		{name: "rest missing key", url: "https://proj.supabase.co", key: "", want: false},
		{name: "rest missing url", url: "", key: "k", want: false},
		{name: "rest missing both", url: "", key: "", want: false},
		{
			name: "postgres with dsn",
			file: `{"storage": {"kind": "postgres", "dsn": "postgres://u:p@localhost/db"}}`,
			want: true,
		},
		{
			name: "postgres without dsn ignores rest credentials",
			url:  "https://proj.supabase.co", key: "k",
			file: `{"storage": {"kind": "postgres"}}`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SUPABASE_URL", tt.url)
			t.Setenv("SUPABASE_KEY", tt.key)

			path := ""
			if tt.file != "" {
				path = filepath.Join(t.TempDir(), "pipeline.json")
				if err := os.WriteFile(path, []byte(tt.file), 0o644); err != nil {
					t.Fatalf("write config: %v", err)
				}
			}

			p, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if p.Storage.RemoteEnabled != tt.want {
				t.Fatalf("RemoteEnabled = %v, want %v", p.Storage.RemoteEnabled, tt.want)
			}
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("Load(missing file): want error, got nil")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatalf("Load(malformed file): want error, got nil")
	}
}
