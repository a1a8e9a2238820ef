package execution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scopeflow/scopeflow/internal/pipeline"
)

// ErrTimeout marks a poll loop or subprocess that ran out of time. It is
// always wrapped in a NodeExecutionError; errors.Is distinguishes a
// timeout from an outright failure.
var ErrTimeout = errors.New("timed out")

// ErrCancelled marks a cooperative stop. It is a normal terminal
// outcome, not an error: the caller receives a cancelled event, never a
// pipeline error.
var ErrCancelled = errors.New("execution cancelled")

// ValidationError aborts a run before any node starts. It carries the
// full problem list from pipeline.Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pipeline validation failed: %s", strings.Join(e.Problems, "; "))
}

// NodeExecutionError reports a runner failure. It aborts the remainder
// of the current run; already-completed external side effects are not
// rolled back.
type NodeExecutionError struct {
	NodeID   string
	NodeType pipeline.NodeType
	Err      error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s (%s) failed: %v", e.NodeID, e.NodeType, e.Err)
}

func (e *NodeExecutionError) Unwrap() error { return e.Err }
