// Package execution drives a validated pipeline: per-run contexts,
// per-node-type runners and the top-level executor.
//
// Execution is strictly sequential in topological order; nodes share a
// serially-owned instrument, so there is no node-level parallelism even
// between independent nodes. Cancellation is cooperative: the executor
// checks the context's flag between top-level nodes, the ForEach runner
// between iterations, and blocking runners within their own poll loops.
// A runner blocked on an external call cannot be interrupted forcibly;
// it returns on its own schedule.
package execution
