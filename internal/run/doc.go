// Package run manages pipeline run lifecycles.
//
// The Manager owns the mapping from run IDs to in-flight executions:
// it validates and submits pipelines, drives each run on its own
// goroutine, persists run records, bridges the executor's event stream
// onto the event bus, and honours cancellation and run timeouts. The
// Monitor periodically reports the set of active runs.
package run
