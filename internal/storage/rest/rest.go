// Package rest implements the storage.Store contract against a Supabase-style
// PostgREST endpoint.
//
// Inserts are JSON-array POSTs to /rest/v1/<table>; the exact row count comes
// from a HEAD request with "Prefer: count=exact", reading the total off the
// Content-Range header. Remote errors are decoded from the PostgREST error
// body into *storage.Error so the loader's classifier can see the remote code
// (e.g. PGRST204) and message verbatim.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"churnetl/internal/dataset"
	"churnetl/internal/storage"
)

func init() {
	storage.Register("rest", func(_ context.Context, cfg storage.Config) (storage.Store, error) {
		return NewClient(cfg.URL, cfg.Key)
	})
}

// Client talks to one PostgREST endpoint.
type Client struct {
	baseURL string
	key     string
	hc      *http.Client
}

// NewClient builds a Client for the given endpoint. No timeout is set on the
// underlying transport; callers rely on its defaults.
func NewClient(baseURL, key string) (*Client, error) {
	if baseURL == "" || key == "" {
		return nil, fmt.Errorf("rest: endpoint URL and key are required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		hc:      &http.Client{},
	}, nil
}

// Insert posts recs as one JSON array to the table endpoint.
func (c *Client) Insert(ctx context.Context, table string, recs []dataset.Record) error {
	if len(recs) == 0 {
		return nil
	}
	body, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("rest: encode records: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(table), bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("rest: insert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeError(resp)
}

// Count issues a HEAD request with Prefer: count=exact and parses the total
// from the Content-Range header ("0-24/3573" or "*/3573").
func (c *Client) Count(ctx context.Context, table string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.tableURL(table)+"?select=*", nil)
	if err != nil {
		return 0, err
	}
	c.setAuth(req)
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rest: count: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &storage.Error{Message: fmt.Sprintf("count: unexpected status %s", resp.Status)}
	}
	cr := resp.Header.Get("Content-Range")
	i := strings.LastIndexByte(cr, '/')
	if i < 0 {
		return 0, &storage.Error{Message: fmt.Sprintf("count: missing Content-Range total in %q", cr)}
	}
	n, err := strconv.ParseInt(cr[i+1:], 10, 64)
	if err != nil {
		return 0, &storage.Error{Message: fmt.Sprintf("count: bad Content-Range total in %q", cr)}
	}
	return n, nil
}

// Close releases idle connections.
func (c *Client) Close() { c.hc.CloseIdleConnections() }

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/rest/v1/" + table
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
}

// restError is the PostgREST error body shape.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// decodeError turns a non-2xx response into a *storage.Error, preserving the
// remote code and message so substring classification can work on them.
func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var re restError
	if err := json.Unmarshal(b, &re); err == nil && (re.Code != "" || re.Message != "") {
		msg := re.Message
		if re.Details != "" {
			msg += " (" + re.Details + ")"
		}
		return &storage.Error{Code: re.Code, Message: msg}
	}
	return &storage.Error{Message: fmt.Sprintf("status %s: %s", resp.Status, strings.TrimSpace(string(b)))}
}
