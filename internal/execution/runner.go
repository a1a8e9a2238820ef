package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/scopeflow/scopeflow/internal/pipeline"
	"github.com/scopeflow/scopeflow/internal/scope"
)

// Options are engine-level defaults a node's config can override.
type Options struct {
	// WorkflowPollInterval bounds how often an acquisition's status is
	// sampled; cancellation is checked on the same cadence.
	WorkflowPollInterval time.Duration
	// WorkflowTimeout bounds the whole poll loop of one acquisition.
	WorkflowTimeout time.Duration
	// CommandTimeout bounds one external process invocation.
	CommandTimeout time.Duration
	// Margin is the default bounding-box margin in microns.
	Margin float64
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		WorkflowPollInterval: 500 * time.Millisecond,
		WorkflowTimeout:      10 * time.Minute,
		CommandTimeout:       2 * time.Minute,
		Margin:               5.0,
	}
}

// Request carries everything a runner needs for one node execution.
type Request struct {
	Pipeline *pipeline.Pipeline
	Node     *pipeline.Node
	Exec     *Context
	Scopes   *scope.Set
	Events   EventSink
	Engine   *Executor
	Options  Options
}

// Input resolves a named input of the request's node.
func (r *Request) Input(portName string) (any, bool, error) {
	return r.Exec.InputValue(r.Pipeline, r.Node.ID, portName)
}

// Publish stores a value on a named output port of the request's node.
func (r *Request) Publish(portName string, v any) error {
	port, ok := r.Node.Out(portName)
	if !ok {
		return fmt.Errorf("node %s has no output %q", r.Node.ID, portName)
	}
	r.Exec.SetValue(port.ID, v)
	return nil
}

// Service resolves a named injected service handle, failing if it is
// missing or of the wrong type.
func serviceAs[T any](r *Request, name string) (T, error) {
	var zero T
	raw, ok := r.Exec.Service(name)
	if !ok {
		return zero, fmt.Errorf("service %q not injected", name)
	}
	svc, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has unexpected type %T", name, raw)
	}
	return svc, nil
}

// Runner executes one node: it reads inputs from the context, performs
// the node's work and writes outputs back. Work may block for the
// duration of an external poll loop or subprocess wait; the run's
// worker is blocked for that whole duration, which is intentional
// because the instrument is a single-owner resource.
type Runner interface {
	Run(ctx context.Context, req *Request) error
}

// runnerFor maps a node type to its runner. The switch is exhaustive
// over the closed NodeType set: adding a node type without a runner is
// a compile-visible gap here rather than a run-time lookup miss.
func runnerFor(t pipeline.NodeType) (Runner, error) {
	switch t {
	case pipeline.NodeTypeDataSource:
		return &DataSourceRunner{}, nil
	case pipeline.NodeTypeWorkflow:
		return &WorkflowRunner{}, nil
	case pipeline.NodeTypeThreshold:
		return &ThresholdRunner{}, nil
	case pipeline.NodeTypeForEach:
		return &ForEachRunner{}, nil
	case pipeline.NodeTypeConditional:
		return &ConditionalRunner{}, nil
	case pipeline.NodeTypeExternalCommand:
		return &ExternalCommandRunner{}, nil
	}
	return nil, fmt.Errorf("no runner for node type %s", t)
}
