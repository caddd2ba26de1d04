// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "loader.batch_size"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateStaging(p.Staging, p.Fallback)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateLoader(p.Loader)...)

	return issues
}

// validateSource validates Source configuration.
func validateSource(s Source) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.path",
			Message:  "raw input path is required",
		})
	}
	return issues
}

// validateStaging validates the staged-file and fallback locations.
func validateStaging(s Staging, f Fallback) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "staging.dir",
			Message:  "staging directory must not be empty",
		})
	}
	if strings.TrimSpace(s.Name) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "staging.name",
			Message:  "staged file name must not be empty",
		})
	} else if !strings.HasSuffix(s.Name, ".csv") {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "staging.name",
			Message:  "staged file name does not end in .csv; downstream tooling expects CSV",
		})
	}
	if strings.TrimSpace(f.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "fallback.dir",
			Message:  "fallback directory must not be empty",
		})
	}
	return issues
}

// validateStorage validates the remote store selection.
func validateStorage(s Storage) []Issue {
	var issues []Issue
	switch s.Kind {
	case "rest", "postgres":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unsupported kind %q (expected \"rest\" or \"postgres\")", s.Kind),
		})
	}
	if strings.TrimSpace(s.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.table",
			Message:  "remote table name must not be empty",
		})
	}
	if s.Kind == "postgres" && s.DSN == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.dsn",
			Message:  "empty DSN: postgres backend will run in local-fallback mode",
		})
	}
	return issues
}

// validateLoader validates batching and retry knobs.
func validateLoader(l Loader) []Issue {
	var issues []Issue
	if l.BatchSize < 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "loader.batch_size",
			Message:  "batch size must be >= 1",
		})
	}
	if l.MaxRetries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "loader.max_retries",
			Message:  "max retries must be >= 0",
		})
	}
	if l.BackoffFactor <= 1 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "loader.backoff_factor",
			Message:  "backoff factor <= 1 disables exponential growth between retries",
		})
	}
	return issues
}
