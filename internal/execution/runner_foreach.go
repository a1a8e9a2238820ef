package execution

import (
	"context"
	"fmt"

	"github.com/scopeflow/scopeflow/internal/pipeline"
)

// ForEachRunner iterates a collection. Each element runs the loop body
// (from the scope resolver) against a scoped copy of the context, with
// the element and its index injected as the loop's output values. One
// iteration's intermediate results never leak into the next.
// Cancellation is checked between iterations; a stop request ends the
// loop early.
type ForEachRunner struct{}

func (r *ForEachRunner) Run(ctx context.Context, req *Request) error {
	v, ok, err := req.Input(pipeline.PortCollection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("collection input produced no value")
	}
	items, err := asSlice(v)
	if err != nil {
		return fmt.Errorf("collection input: %w", err)
	}

	body := req.Scopes.BodySorted(req.Node.ID)

	// Deserialized pipelines carry explicit port ids, so the loop's
	// outputs are resolved by name rather than rebuilt by convention.
	itemPort, ok := req.Node.Out(pipeline.PortCurrentItem)
	if !ok {
		return fmt.Errorf("node %s has no output %q", req.Node.ID, pipeline.PortCurrentItem)
	}
	indexPort, ok := req.Node.Out(pipeline.PortIndex)
	if !ok {
		return fmt.Errorf("node %s has no output %q", req.Node.ID, pipeline.PortIndex)
	}

	for i, item := range items {
		if req.Exec.Cancelled() {
			return ErrCancelled
		}

		scoped := req.Exec.ScopedCopy()
		scoped.SetValue(itemPort.ID, item)
		scoped.SetValue(indexPort.ID, i)

		req.Events.ForEachIteration(req.Node.ID, i+1, len(items))
		req.Engine.metrics.RecordForEachIteration(req.Node.ID)

		if err := req.Engine.ExecuteSubgraph(ctx, req.Pipeline, body, scoped, req.Scopes, req.Events); err != nil {
			return err
		}
	}

	// The completed trigger fires only after every iteration has run;
	// it marks the loop's exit edge for downstream nodes.
	return req.Publish(pipeline.PortCompleted, true)
}
