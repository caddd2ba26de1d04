package loader

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ErrorClass is the loader's coarse classification of a remote insert error.
type ErrorClass int

const (
	// ClassTransient errors are retried with backoff.
	ClassTransient ErrorClass = iota
	// ClassSchemaMismatch errors abort all remaining remote work for the run.
	ClassSchemaMismatch
)

// Classifier decides how the retry policy treats an insert error.
//
// The substring heuristic lives behind this type on purpose: matching on a
// remote API's error text is fragile and tied to its current message format,
// so this is the single replaceable violation point.
type Classifier func(error) ErrorClass

// SignatureClassifier returns a Classifier that flags an error as a schema
// mismatch when its message contains any of the given substrings.
func SignatureClassifier(signatures []string) Classifier {
	sigs := append([]string(nil), signatures...)
	return func(err error) ErrorClass {
		msg := err.Error()
		for _, s := range sigs {
			if strings.Contains(msg, s) {
				return ClassSchemaMismatch
			}
		}
		return ClassTransient
	}
}

// SchemaAbortError wraps the remote error that was classified as a schema
// mismatch.
type SchemaAbortError struct {
	Cause error
}

func (e *SchemaAbortError) Error() string { return "schema mismatch: " + e.Cause.Error() }
func (e *SchemaAbortError) Unwrap() error { return e.Cause }

// ExhaustedError wraps the last transient error after the retry budget is
// spent.
type ExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *ExhaustedError) Error() string { return "retries exhausted: " + e.Cause.Error() }
func (e *ExhaustedError) Unwrap() error { return e.Cause }

// Policy is an explicit retry policy: bounded attempts, exponential backoff,
// pluggable classification, and an injectable sleep for deterministic tests.
type Policy struct {
	// MaxRetries bounds the number of re-attempts after the first failure,
	// so a batch is tried at most MaxRetries+1 times.
	MaxRetries int

	// BackoffFactor grows the wait as BackoffFactor^attempt seconds for
	// attempt = 1..MaxRetries.
	BackoffFactor float64

	// Classify decides transient vs schema mismatch. nil treats every error
	// as transient.
	Classify Classifier

	// Sleep is called with each backoff wait. nil uses time.Sleep.
	Sleep func(time.Duration)
}

// Do runs fn under the policy. It returns nil on success, *SchemaAbortError
// when the classifier flags a schema mismatch (no retry), or *ExhaustedError
// when the retry budget is spent on transient errors.
func (p Policy) Do(fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	for attempt := 0; ; {
		err := fn()
		if err == nil {
			return nil
		}
		if p.Classify != nil && p.Classify(err) == ClassSchemaMismatch {
			return &SchemaAbortError{Cause: err}
		}
		attempt++
		if attempt > p.MaxRetries {
			return &ExhaustedError{Attempts: attempt, Cause: err}
		}
		sleep(p.backoff(attempt))
	}
}

// backoff returns the wait before the given (1-based) retry attempt.
func (p Policy) backoff(attempt int) time.Duration {
	secs := math.Pow(p.BackoffFactor, float64(attempt))
	return time.Duration(secs * float64(time.Second))
}

// IsSchemaAbort reports whether err is (or wraps) a SchemaAbortError.
func IsSchemaAbort(err error) bool {
	var e *SchemaAbortError
	return errors.As(err, &e)
}

// IsExhausted reports whether err is (or wraps) an ExhaustedError.
func IsExhausted(err error) bool {
	var e *ExhaustedError
	return errors.As(err, &e)
}
