package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/scopeflow/scopeflow/internal/pipeline"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

// WorkflowRunner starts an external acquisition workflow and blocks
// until it reaches a terminal state.
//
// The acquisition position comes from the position input when
// connected, overriding whatever the loaded template specifies. A
// bounding-box object input additionally derives a coordinate range:
// the object's bounds expanded by the configured margin. Status is
// polled on a bounded interval; each poll checks cooperative
// cancellation. A FAILED status and a poll timeout both become node
// failures, the timeout wrapping ErrTimeout.
//
// Config keys: "template", "channels", "margin" (microns),
// "poll_interval_seconds", "timeout_seconds".
type WorkflowRunner struct{}

func (r *WorkflowRunner) Run(ctx context.Context, req *Request) error {
	executor, err := serviceAs[ports.WorkflowExecutor](req, ports.ServiceWorkflowExecution)
	if err != nil {
		return err
	}

	cfg := req.Node.Config
	startCfg := map[string]any{
		"template": configString(cfg, "template", ""),
	}

	if v, ok, err := req.Input(pipeline.PortPosition); err != nil {
		return err
	} else if ok {
		position, err := asPosition(v)
		if err != nil {
			return fmt.Errorf("position input: %w", err)
		}
		startCfg["position"] = position
	}

	if v, ok, err := req.Input(pipeline.PortBoundingObject); err != nil {
		return err
	} else if ok {
		object, err := asObject(v)
		if err != nil {
			return fmt.Errorf("bounding object input: %w", err)
		}
		margin := configFloat(cfg, "margin", req.Options.Margin)
		region := object.Bounds.Expand(margin)
		startCfg["region"] = region
		if _, overridden := startCfg["position"]; !overridden {
			startCfg["position"] = region.Center()
		}
	}

	handle, err := executor.Start(ctx, startCfg)
	if err != nil {
		return fmt.Errorf("starting workflow: %w", err)
	}

	if err := r.awaitCompletion(ctx, req, executor, handle); err != nil {
		return err
	}

	channels := configStrings(cfg, "channels")
	if len(channels) > 0 {
		volume, err := executor.ChannelData(ctx, handle, channels[0])
		if err != nil {
			return fmt.Errorf("reading channel %q: %w", channels[0], err)
		}
		if err := req.Publish(pipeline.PortVolume, volume); err != nil {
			return err
		}
	}

	return req.Publish(pipeline.PortCompleted, true)
}

// awaitCompletion polls workflow status until a terminal state, the
// configured timeout, or cancellation.
func (r *WorkflowRunner) awaitCompletion(ctx context.Context, req *Request, executor ports.WorkflowExecutor, handle string) error {
	interval := configDuration(req.Node.Config, "poll_interval_seconds", req.Options.WorkflowPollInterval)
	timeout := configDuration(req.Node.Config, "timeout_seconds", req.Options.WorkflowTimeout)
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if req.Exec.Cancelled() {
			return ErrCancelled
		}

		status, err := executor.PollStatus(ctx, handle)
		if err != nil {
			return fmt.Errorf("polling workflow %s: %w", handle, err)
		}

		switch status {
		case ports.WorkflowStatusCompleted:
			return nil
		case ports.WorkflowStatusFailed:
			return fmt.Errorf("workflow %s reported FAILED", handle)
		case ports.WorkflowStatusRunning, ports.WorkflowStatusIdle:
			// keep polling
		default:
			return fmt.Errorf("workflow %s reported unknown status %q", handle, status)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("workflow %s did not finish within %s: %w", handle, timeout, ErrTimeout)
		}
	}
}
