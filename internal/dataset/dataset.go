// Package dataset holds the in-memory tabular model shared by every pipeline
// stage: an ordered column list plus a slice of records keyed by column name.
//
// Invariant: every Record carries exactly the Dataset's columns. Cell values
// are restricted to nil, string, float64, and int64 so that the CSV writer and
// the storage backends can encode them without reflection surprises.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Record is one row of a Dataset, keyed by column name.
type Record map[string]any

// Dataset is an ordered sequence of records sharing one ordered column set.
type Dataset struct {
	Columns []string
	Rows    []Record
}

// New returns an empty Dataset with the given column order.
func New(columns []string) *Dataset {
	return &Dataset{Columns: append([]string(nil), columns...)}
}

// HasColumn reports whether name is one of the Dataset's columns.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a derived column. The value for each row is computed by fn
// from the row's current cells.
func (d *Dataset) AddColumn(name string, fn func(r Record) any) {
	d.Columns = append(d.Columns, name)
	for _, r := range d.Rows {
		r[name] = fn(r)
	}
}

// DropColumns removes the named columns (and their cells) when present.
// Unknown names are ignored.
func (d *Dataset) DropColumns(names ...string) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := d.Columns[:0]
	for _, c := range d.Columns {
		if _, ok := drop[c]; ok {
			for _, r := range d.Rows {
				delete(r, c)
			}
			continue
		}
		kept = append(kept, c)
	}
	d.Columns = kept
}

// Renamed returns a new Dataset with columns renamed via mapping. Source
// records are not mutated; each row is copied with the mapped keys. Columns
// absent from the mapping keep their original name.
func (d *Dataset) Renamed(mapping map[string]string) *Dataset {
	out := &Dataset{
		Columns: make([]string, len(d.Columns)),
		Rows:    make([]Record, len(d.Rows)),
	}
	for i, c := range d.Columns {
		if m, ok := mapping[c]; ok {
			out.Columns[i] = m
		} else {
			out.Columns[i] = c
		}
	}
	for i, r := range d.Rows {
		nr := make(Record, len(d.Columns))
		for j, c := range d.Columns {
			nr[out.Columns[j]] = r[c]
		}
		out.Rows[i] = nr
	}
	return out
}

// Batches partitions the rows into contiguous slices of at most size rows.
// The partition is exact: no overlap, no gaps, concatenation reproduces the
// original order. A zero-row dataset yields zero batches.
func (d *Dataset) Batches(size int) ([][]Record, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", size)
	}
	n := len(d.Rows)
	out := make([][]Record, 0, (n+size-1)/size)
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		out = append(out, d.Rows[i:end])
	}
	return out, nil
}

// ReadCSV loads a CSV file into a Dataset. The first line is the header.
// A UTF-8 BOM, if present, is stripped via the x/text decoder. Empty cells
// decode to nil; everything else stays a string.
func ReadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	cr := csv.NewReader(transform.NewReader(f, dec))
	cr.FieldsPerRecord = -1 // tolerant by default

	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	d := New(hdr)

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}
		row := make(Record, len(hdr))
		for i, c := range hdr {
			if i >= len(rec) || rec[i] == "" {
				row[c] = nil
				continue
			}
			row[c] = rec[i]
		}
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

// WriteCSV writes the Dataset to path, creating the parent directory when
// absent. nil cells become empty fields.
func (d *Dataset) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(d.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	cells := make([]string, len(d.Columns))
	for _, r := range d.Rows {
		for i, c := range d.Columns {
			cells[i] = formatCell(r[c])
		}
		if err := w.Write(cells); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// formatCell renders one cell value for CSV output.
func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

// Checksum returns the xxh3 hash of the file at path, used to identify staged
// artifacts in logs and validation summaries.
func Checksum(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return xxh3.Hash(b), nil
}
