// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the churn pipeline.
//
// It mirrors the storage factory pattern: the rest of the codebase depends
// only on this package, and concrete metric systems live in subpackages. The
// global backend defaults to a no-op so every call site is safe when no
// backend is configured.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveDuration records a latency/duration style value.
	ObserveDuration(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)      {}
func (nopBackend) ObserveDuration(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                              { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStage measures one pipeline stage: latency plus a success/failure
// counter. Stage names are "transform", "load", and "validate".
func RecordStage(job, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"stage":  stage,
		"status": status,
	}

	backend.IncCounter("churn_pipeline_stage_total", 1, lbls)
	backend.ObserveDuration("churn_pipeline_stage_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given job and kind.
//
// Kinds mirror the load summary fields:
//   - "staged"
//   - "inserted"
//   - "fallback"
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("churn_pipeline_rows_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments a batch-outcome counter for the given job.
// Outcomes are "ok", "skipped", and "schema_abort".
func RecordBatches(job, outcome string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("churn_pipeline_batches_total", float64(delta), Labels{
		"job":     job,
		"outcome": outcome,
	})
}
