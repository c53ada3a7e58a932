// Package metrics records run-level counters and step timings behind a small
// backend-agnostic interface.
//
// A no-op backend is installed by default, so every Record* call is safe
// whether or not a concrete backend (prompush, datadog) was configured.
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal           = "splitvep_step_total"
	StepDurationSeconds = "splitvep_step_duration_seconds"
	RecordsTotal        = "splitvep_records_total"
	BlocksTotal         = "splitvep_blocks_total"
	BatchesTotal        = "splitvep_batches_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
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

// RecordStep counts one execution of a pipeline step (partition, transform,
// merge, load) and records how long it took.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta to the record counter of the given kind. Kinds follow
// the run summary: lines, records, short_records, schema_missing,
// no_annotation, entries, repaired, dropped, rows, loaded.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBlocks counts blocks transformed by the worker pool.
func RecordBlocks(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BlocksTotal, float64(delta), Labels{"job": job})
}

// RecordBatches counts batches flushed to a storage backend.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}
