// Package colnorm maps source CSV header names onto remote-identifier-safe
// column names.
//
// The canonical form is snake_case: an underscore is inserted at each
// lower-to-upper camel boundary, runs of non-alphanumeric characters collapse
// to a single underscore, edge underscores are stripped, and the result is
// lowercased.
//
// A compatibility rule follows: when the ORIGINAL header contains an uppercase
// letter, all underscores are removed from the canonical name. The remote
// table was created with unquoted mixed-case identifiers, which Postgres folds
// to a single lowercase token ("SeniorCitizen" -> seniorcitizen), so the
// mapped name must match that folding rather than snake_case.
package colnorm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	nonAlnumRun   = regexp.MustCompile(`[^0-9a-zA-Z_]+`)
)

// Normalize converts one header name to its remote column name.
func Normalize(name string) string {
	s := camelBoundary.ReplaceAllString(name, `${1}_${2}`)
	s = nonAlnumRun.ReplaceAllString(s, "_")
	s = strings.ToLower(strings.Trim(s, "_"))
	if hasUpper(name) {
		s = strings.ReplaceAll(s, "_", "")
	}
	return s
}

// BuildMapping normalizes every column and verifies the mapping is injective.
// Two source columns collapsing to one remote name would silently interleave
// their values on insert, so a collision is a hard error.
func BuildMapping(columns []string) (map[string]string, error) {
	out := make(map[string]string, len(columns))
	seen := make(map[string]string, len(columns))
	for _, c := range columns {
		n := Normalize(c)
		if prev, ok := seen[n]; ok {
			return nil, fmt.Errorf("column name collision: %q and %q both map to %q", prev, c, n)
		}
		seen[n] = c
		out[c] = n
	}
	return out, nil
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
