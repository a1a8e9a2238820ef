package execution

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/scopeflow/scopeflow/internal/pipeline"
	"github.com/scopeflow/scopeflow/internal/scope"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

// Executor walks a pipeline in topological order and dispatches each
// node to its runner. One run occupies one goroutine; there is no
// node-level parallelism (see the package comment).
type Executor struct {
	logger  *zap.Logger
	metrics ports.MetricsCollector
	options Options
}

// NewExecutor creates an executor.
func NewExecutor(logger *zap.Logger, metrics ports.MetricsCollector, options Options) *Executor {
	return &Executor{
		logger:  logger,
		metrics: metrics,
		options: options,
	}
}

// Run executes the pipeline against the given context.
//
// The graph is validated first; a non-empty problem list aborts before
// any node runs. Top-level nodes then execute in topological order,
// with cancellation checked between nodes. Exactly one terminal event
// is emitted: PipelineCompleted, PipelineError or PipelineCancelled.
// The returned error is nil on completion, ErrCancelled on a
// cooperative stop, a *ValidationError or a *NodeExecutionError
// otherwise. Partial results already written into the context remain
// inspectable after an aborted run.
func (e *Executor) Run(ctx context.Context, p *pipeline.Pipeline, ec *Context, sink EventSink) error {
	if problems := p.Validate(); len(problems) > 0 {
		err := &ValidationError{Problems: problems}
		e.logger.Error("pipeline validation failed",
			zap.String("pipeline", p.Name),
			zap.Strings("problems", problems))
		sink.PipelineError(err.Error())
		return err
	}

	scopes, err := scope.Resolve(p)
	if err != nil {
		verr := &ValidationError{Problems: []string{err.Error()}}
		sink.PipelineError(verr.Error())
		return verr
	}

	topLevel := scopes.TopLevelNodeIDs()
	e.logger.Info("pipeline run starting",
		zap.String("pipeline", p.Name),
		zap.Int("top_level_nodes", len(topLevel)),
		zap.Int("total_nodes", p.NodeCount()))

	for i, nodeID := range topLevel {
		if ec.Cancelled() {
			sink.Log("cancellation requested, stopping")
			sink.PipelineCancelled()
			return ErrCancelled
		}

		if err := e.runNode(ctx, p, nodeID, ec, scopes, sink); err != nil {
			if errors.Is(err, ErrCancelled) {
				sink.PipelineCancelled()
				return ErrCancelled
			}
			sink.PipelineError(err.Error())
			return err
		}

		sink.PipelineProgress(i+1, len(topLevel))
	}

	sink.PipelineCompleted()
	return nil
}

// ExecuteSubgraph runs an already topologically ordered list of node ids
// against a (typically scoped) context, with the same per-node dispatch
// and error semantics as Run but without re-validating the graph. The
// ForEach and Conditional runners use it to drive their own body or
// branch without spawning new workers.
func (e *Executor) ExecuteSubgraph(ctx context.Context, p *pipeline.Pipeline, nodeIDs []string, ec *Context, scopes *scope.Set, sink EventSink) error {
	for _, nodeID := range nodeIDs {
		if ec.Cancelled() {
			return ErrCancelled
		}
		if err := e.runNode(ctx, p, nodeID, ec, scopes, sink); err != nil {
			return err
		}
	}
	return nil
}

// runNode dispatches one node to its runner and emits its events. A
// failure is wrapped in a NodeExecutionError naming this node; for a
// node that itself drives a subgraph the wrapping accumulates, so the
// top-level error names the whole failing chain.
func (e *Executor) runNode(ctx context.Context, p *pipeline.Pipeline, nodeID string, ec *Context, scopes *scope.Set, sink EventSink) error {
	node, ok := p.Node(nodeID)
	if !ok {
		err := &NodeExecutionError{NodeID: nodeID, Err: errors.New("node not found")}
		sink.NodeError(nodeID, err.Error())
		return err
	}

	runner, err := runnerFor(node.Type)
	if err != nil {
		wrapped := &NodeExecutionError{NodeID: nodeID, NodeType: node.Type, Err: err}
		sink.NodeError(nodeID, wrapped.Error())
		return wrapped
	}

	sink.NodeStarted(nodeID)
	started := time.Now()

	req := &Request{
		Pipeline: p,
		Node:     node,
		Exec:     ec,
		Scopes:   scopes,
		Events:   sink,
		Engine:   e,
		Options:  e.options,
	}

	runErr := runner.Run(ctx, req)
	elapsed := time.Since(started)

	if runErr != nil {
		if errors.Is(runErr, ErrCancelled) {
			e.metrics.RecordNodeExecuted(string(node.Type), "cancelled", elapsed)
			e.logger.Info("node cancelled",
				zap.String("node_id", nodeID),
				zap.Duration("elapsed", elapsed))
			return ErrCancelled
		}

		wrapped := runErr
		var nodeErr *NodeExecutionError
		if !errors.As(runErr, &nodeErr) || nodeErr.NodeID != nodeID {
			wrapped = &NodeExecutionError{NodeID: nodeID, NodeType: node.Type, Err: runErr}
		}
		e.metrics.RecordNodeExecuted(string(node.Type), "failed", elapsed)
		e.logger.Error("node failed",
			zap.String("node_id", nodeID),
			zap.String("node_type", string(node.Type)),
			zap.Duration("elapsed", elapsed),
			zap.Error(runErr))
		sink.NodeError(nodeID, wrapped.Error())
		return wrapped
	}

	e.metrics.RecordNodeExecuted(string(node.Type), "completed", elapsed)
	e.logger.Debug("node completed",
		zap.String("node_id", nodeID),
		zap.String("node_type", string(node.Type)),
		zap.Duration("elapsed", elapsed))
	sink.NodeCompleted(nodeID)
	return nil
}
