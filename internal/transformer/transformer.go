// Package transformer turns the raw churn CSV into the staged dataset: numeric
// coercion, median imputation, categorical backfill, derived features, and a
// final column drop before the staged file is written.
//
// All imputation statistics are computed over the dataset being transformed;
// there is no cross-run state.
package transformer

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"churnetl/internal/dataset"
)

// Raw column names the transform operates on.
const (
	colTenure         = "tenure"
	colMonthlyCharges = "MonthlyCharges"
	colTotalCharges   = "TotalCharges"
	colInternet       = "InternetService"
	colMultiLines     = "MultipleLines"
	colContract       = "Contract"
)

// numericColumns are median-imputed; every other column is categorical and
// backfilled with the "Unknown" sentinel.
var numericColumns = []string{colTenure, colMonthlyCharges, colTotalCharges}

// droppedColumns are removed before staging: identifying fields with no
// modeling value.
var droppedColumns = []string{"customerID", "gender"}

// internetServiceValues mark a row as having internet service (compared after
// lowercasing and trimming).
var internetServiceValues = map[string]struct{}{
	"dsl":         {},
	"fiber optic": {},
	"fiberoptic":  {},
	"fiber":       {},
}

// contractCodes maps normalized contract names to their numeric code.
// Unmapped values (including the "Unknown" sentinel) code to -1.
var contractCodes = map[string]int64{
	"month-to-month": 0,
	"one year":       1,
	"two year":       2,
}

// Run reads the raw CSV, applies the transform, and writes the staged CSV,
// returning the staged path.
func Run(rawPath, stagedPath string) (string, error) {
	d, err := dataset.ReadCSV(rawPath)
	if err != nil {
		return "", fmt.Errorf("read raw dataset %s: %w", rawPath, err)
	}
	log.Printf("transform: loaded rows=%d columns=%d path=%s", len(d.Rows), len(d.Columns), rawPath)

	Apply(d)

	if err := d.WriteCSV(stagedPath); err != nil {
		return "", fmt.Errorf("write staged dataset: %w", err)
	}
	log.Printf("transform: staged rows=%d columns=%d path=%s", len(d.Rows), len(d.Columns), stagedPath)
	return stagedPath, nil
}

// Apply runs the full transform on d in place: coercion, imputation,
// categorical backfill, derived features, column drops.
func Apply(d *dataset.Dataset) {
	for _, c := range numericColumns {
		coerceNumeric(d, c)
	}
	for _, c := range numericColumns {
		imputeMedian(d, c)
	}
	fillUnknown(d)

	d.AddColumn("tenure_group", func(r dataset.Record) any {
		v, ok := r[colTenure].(float64)
		if !ok {
			return nil
		}
		switch {
		case v <= 12:
			return "New"
		case v <= 36:
			return "Regular"
		case v <= 60:
			return "Loyal"
		default:
			return "Champion"
		}
	})

	d.AddColumn("monthly_charge_segment", func(r dataset.Record) any {
		v, ok := r[colMonthlyCharges].(float64)
		if !ok {
			return nil
		}
		switch {
		case v < 30:
			return "Low"
		case v <= 70:
			return "Medium"
		default:
			return "High"
		}
	})

	d.AddColumn("has_internet_service", func(r dataset.Record) any {
		s := strings.TrimSpace(strings.ToLower(asString(r[colInternet])))
		if _, ok := internetServiceValues[s]; ok {
			return int64(1)
		}
		return int64(0)
	})

	d.AddColumn("is_multi_line_user", func(r dataset.Record) any {
		if strings.ToLower(asString(r[colMultiLines])) == "yes" {
			return int64(1)
		}
		return int64(0)
	})

	d.AddColumn("contract_type_code", func(r dataset.Record) any {
		s := strings.TrimSpace(strings.ToLower(asString(r[colContract])))
		if code, ok := contractCodes[s]; ok {
			return code
		}
		return int64(-1)
	})

	d.DropColumns(droppedColumns...)
}

// coerceNumeric parses every cell of col as a float64. Values that fail to
// parse become nil; this is recovered by imputation, never surfaced as an
// error.
func coerceNumeric(d *dataset.Dataset, col string) {
	if !d.HasColumn(col) {
		return
	}
	for _, r := range d.Rows {
		switch v := r[col].(type) {
		case nil, float64:
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				r[col] = nil
				continue
			}
			r[col] = f
		default:
			r[col] = nil
		}
	}
}

// imputeMedian replaces nil cells of col with the median of its non-nil
// values. A column with no non-nil values is left untouched.
func imputeMedian(d *dataset.Dataset, col string) {
	if !d.HasColumn(col) {
		return
	}
	var vals []float64
	for _, r := range d.Rows {
		if f, ok := r[col].(float64); ok {
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return
	}
	m := median(vals)
	filled := 0
	for _, r := range d.Rows {
		if r[col] == nil {
			r[col] = m
			filled++
		}
	}
	if filled > 0 {
		log.Printf("transform: imputed column=%s filled=%d median=%v", col, filled, m)
	}
}

// fillUnknown replaces nil cells of every categorical (non-numeric) column
// with the "Unknown" sentinel.
func fillUnknown(d *dataset.Dataset) {
	numeric := make(map[string]struct{}, len(numericColumns))
	for _, c := range numericColumns {
		numeric[c] = struct{}{}
	}
	for _, c := range d.Columns {
		if _, ok := numeric[c]; ok {
			continue
		}
		for _, r := range d.Rows {
			if r[c] == nil {
				r[c] = "Unknown"
			}
		}
	}
}

// median returns the statistical median: the middle value for odd counts, the
// mean of the two middle values for even counts. vals must be non-empty; it
// is sorted in place.
func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
