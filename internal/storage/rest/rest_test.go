package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"churnetl/internal/dataset"
	"churnetl/internal/storage"
)

func TestNewClient_RequiresCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		key  string
	}{
		{name: "missing url", url: "", key: "k"},
		{name: "missing key", url: "https://proj.supabase.co", key: ""},
		{name: "missing both", url: "", key: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewClient(tt.url, tt.key); err == nil {
				t.Fatalf("NewClient(%q, %q): want error, got nil", tt.url, tt.key)
			}
		})
	}
}

func TestInsert(t *testing.T) {
	t.Parallel()

	type seen struct {
		method  string
		path    string
		apikey  string
		auth    string
		prefer  string
		ctype   string
		payload []map[string]any
	}
	var got seen

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = seen{
			method: r.Method,
			path:   r.URL.Path,
			apikey: r.Header.Get("apikey"),
			auth:   r.Header.Get("Authorization"),
			prefer: r.Header.Get("Prefer"),
			ctype:  r.Header.Get("Content-Type"),
		}
		if err := json.Unmarshal(body, &got.payload); err != nil {
			t.Errorf("request body is not a JSON array: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "service-key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	recs := []dataset.Record{
		{"tenure": "5", "monthlycharges": "29.85"},
		{"tenure": "12", "monthlycharges": "70"},
	}
	if err := c.Insert(context.Background(), "churn_data", recs); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if got.method != http.MethodPost {
		t.Fatalf("method = %s, want POST", got.method)
	}
	if got.path != "/rest/v1/churn_data" {
		t.Fatalf("path = %s, want /rest/v1/churn_data", got.path)
	}
	if got.apikey != "service-key" || got.auth != "Bearer service-key" {
		t.Fatalf("auth headers = %q / %q", got.apikey, got.auth)
	}
	if got.prefer != "return=minimal" {
		t.Fatalf("Prefer = %q, want return=minimal", got.prefer)
	}
	if got.ctype != "application/json" {
		t.Fatalf("Content-Type = %q", got.ctype)
	}
	if len(got.payload) != 2 || got.payload[1]["tenure"] != "12" {
		t.Fatalf("payload = %v", got.payload)
	}
}

func TestInsert_EmptyBatchSkipsRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for empty batch")
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "k")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Insert(context.Background(), "churn_data", nil); err != nil {
		t.Fatalf("Insert(empty): %v", err)
	}
}

func TestInsert_DecodesPostgRESTError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":"PGRST204","message":"Could not find the 'tenure_group' column of 'churn_data' in the schema cache","details":"","hint":null}`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "k")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = c.Insert(context.Background(), "churn_data", []dataset.Record{{"a": "1"}})
	if err == nil {
		t.Fatalf("Insert: want error, got nil")
	}

	var se *storage.Error
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *storage.Error", err)
	}
	if se.Code != "PGRST204" {
		t.Fatalf("code = %q, want PGRST204", se.Code)
	}
	// The classifier matches on substrings of the rendered error.
	if !strings.Contains(err.Error(), "Could not find") {
		t.Fatalf("error text = %q, missing remote message", err.Error())
	}
}

func TestInsert_NonJSONErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream unavailable")
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "k")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = c.Insert(context.Background(), "churn_data", []dataset.Record{{"a": "1"}})
	var se *storage.Error
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *storage.Error", err)
	}
	if !strings.Contains(se.Message, "502") || !strings.Contains(se.Message, "upstream unavailable") {
		t.Fatalf("message = %q", se.Message)
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		contentRange string
		status       int
		want         int64
		wantErr      bool
	}{
		{name: "range with window", contentRange: "0-24/3573", status: http.StatusOK, want: 3573},
		{name: "wildcard range", contentRange: "*/42", status: http.StatusPartialContent, want: 42},
		{name: "zero rows", contentRange: "*/0", status: http.StatusOK, want: 0},
		{name: "missing total", contentRange: "0-24", status: http.StatusOK, wantErr: true},
		{name: "unparsable total", contentRange: "*/lots", status: http.StatusOK, wantErr: true},
		{name: "error status", contentRange: "", status: http.StatusUnauthorized, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("method = %s, want HEAD", r.Method)
				}
				if got := r.Header.Get("Prefer"); got != "count=exact" {
					t.Errorf("Prefer = %q, want count=exact", got)
				}
				if tt.contentRange != "" {
					w.Header().Set("Content-Range", tt.contentRange)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c, err := NewClient(srv.URL, "k")
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}

			n, err := c.Count(context.Background(), "churn_data")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Count: want error, got %d", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if n != tt.want {
				t.Fatalf("Count = %d, want %d", n, tt.want)
			}
		})
	}
}
