// Package validator re-reads the staged dataset and an independent remote row
// count and checks a fixed set of structural invariants over the loaded data.
//
// Every check runs regardless of earlier results; the report aggregates all
// outcomes rather than short-circuiting, and nothing here ever halts the run.
package validator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"churnetl/internal/dataset"
	"churnetl/internal/storage"
)

// requiredNumeric are the columns that must carry no nulls after the
// transform's imputation.
var requiredNumeric = []string{"tenure", "MonthlyCharges", "TotalCharges"}

var (
	expectedTenureGroups = []string{"Champion", "Loyal", "New", "Regular"}
	expectedSegments     = []string{"High", "Low", "Medium"}
)

// Report is the immutable outcome of one validation run.
type Report struct {
	MissingValuesOK bool
	LocalRowCount   int

	// RemoteRowCount is nil when the remote store is unconfigured or the
	// count query failed; RowCountMatch is false in that case.
	RemoteRowCount *int64
	RowCountMatch  bool

	TenureGroupOK    bool
	MonthlySegmentOK bool
	ContractCodeOK   bool

	// StagedChecksum identifies the exact staged artifact that was validated.
	StagedChecksum uint64
}

// OK reports whether every boolean check passed.
func (r Report) OK() bool {
	return r.MissingValuesOK && r.RowCountMatch && r.TenureGroupOK && r.MonthlySegmentOK && r.ContractCodeOK
}

// Run validates the staged file against the remote store. store may be nil
// (remote unconfigured); the remote count is then recorded as unavailable.
func Run(ctx context.Context, stagedPath string, store storage.Store, table string) (Report, error) {
	var rep Report

	d, err := dataset.ReadCSV(stagedPath)
	if err != nil {
		log.Printf("validator: staged file not found at %s: %v (run transform first)", stagedPath, err)
		return rep, fmt.Errorf("read staged dataset: %w", err)
	}

	if sum, err := dataset.Checksum(stagedPath); err == nil {
		rep.StagedChecksum = sum
	}

	rep.MissingValuesOK = checkNoMissing(d)
	rep.LocalRowCount = len(d.Rows)

	if store != nil {
		n, err := store.Count(ctx, table)
		if err != nil {
			log.Printf("validator: error fetching remote row count: %v", err)
		} else {
			rep.RemoteRowCount = &n
		}
	} else {
		log.Printf("validator: remote store not configured, cannot fetch remote row count")
	}
	rep.RowCountMatch = rep.RemoteRowCount != nil && int64(rep.LocalRowCount) == *rep.RemoteRowCount

	tenureGroups := distinctStrings(d, "tenure_group")
	rep.TenureGroupOK = equalSets(tenureGroups, expectedTenureGroups)
	log.Printf("validator: tenure groups found: %v", tenureGroups)

	segments := distinctStrings(d, "monthly_charge_segment")
	rep.MonthlySegmentOK = equalSets(segments, expectedSegments)
	log.Printf("validator: charge segments found: %v", segments)

	codes, parseable := distinctCodes(d, "contract_type_code")
	rep.ContractCodeOK = parseable && subsetOf(codes, []int64{0, 1, 2})
	log.Printf("validator: contract codes found: %v", codes)

	return rep, nil
}

// Print writes the human-readable validation summary.
func (r Report) Print() {
	remote := "unavailable"
	if r.RemoteRowCount != nil {
		remote = strconv.FormatInt(*r.RemoteRowCount, 10)
	}
	log.Printf("validation summary:")
	log.Printf("  missing_values_ok=%v", r.MissingValuesOK)
	log.Printf("  local_row_count=%d", r.LocalRowCount)
	log.Printf("  remote_row_count=%s", remote)
	log.Printf("  row_count_match=%v", r.RowCountMatch)
	log.Printf("  tenure_group_ok=%v", r.TenureGroupOK)
	log.Printf("  monthly_segment_ok=%v", r.MonthlySegmentOK)
	log.Printf("  contract_code_ok=%v", r.ContractCodeOK)
	log.Printf("  staged_checksum=%016x", r.StagedChecksum)
	log.Printf("  overall_ok=%v", r.OK())
}

// checkNoMissing verifies no nulls remain in the required numeric columns.
// A required column that is missing entirely also fails the check.
func checkNoMissing(d *dataset.Dataset) bool {
	ok := true
	for _, c := range requiredNumeric {
		if !d.HasColumn(c) {
			log.Printf("validator: required column missing: %s", c)
			ok = false
			continue
		}
		nulls := 0
		for _, r := range d.Rows {
			if r[c] == nil {
				nulls++
			}
		}
		if nulls > 0 {
			log.Printf("validator: column=%s nulls=%d", c, nulls)
			ok = false
		}
	}
	return ok
}

// distinctStrings returns the sorted distinct string values of col.
func distinctStrings(d *dataset.Dataset, col string) []string {
	set := map[string]struct{}{}
	for _, r := range d.Rows {
		if s, ok := r[col].(string); ok {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// distinctCodes parses the distinct integer values of col. parseable is false
// when any non-nil cell fails to parse as an integer.
func distinctCodes(d *dataset.Dataset, col string) (codes []int64, parseable bool) {
	parseable = true
	set := map[int64]struct{}{}
	for _, r := range d.Rows {
		v := r[col]
		if v == nil {
			continue
		}
		var n int64
		switch t := v.(type) {
		case int64:
			n = t
		case float64:
			n = int64(t)
		case string:
			parsed, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				parseable = false
				continue
			}
			n = parsed
		default:
			parseable = false
			continue
		}
		set[n] = struct{}{}
	}
	codes = make([]int64, 0, len(set))
	for n := range set {
		codes = append(codes, n)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes, parseable
}

func equalSets(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func subsetOf(got, allowed []int64) bool {
	ok := make(map[int64]struct{}, len(allowed))
	for _, n := range allowed {
		ok[n] = struct{}{}
	}
	for _, n := range got {
		if _, in := ok[n]; !in {
			return false
		}
	}
	return true
}
