package execution

import (
	"context"
	"fmt"

	"github.com/scopeflow/scopeflow/internal/pipeline"
	"github.com/scopeflow/scopeflow/internal/scope"
)

// ConditionalRunner evaluates a comparison and fires exactly one of its
// two branch outputs, passing its input value through unmodified. Only
// the matching branch's node set executes; the other branch's nodes are
// skipped entirely for this evaluation.
//
// The threshold comes from the threshold input when connected, else
// from config. Config keys: "op" (one of > >= < <= == !=, default >),
// "threshold".
type ConditionalRunner struct{}

func (r *ConditionalRunner) Run(ctx context.Context, req *Request) error {
	v, ok, err := req.Input(pipeline.PortValue)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("value input produced no value")
	}
	value, err := asFloat(v)
	if err != nil {
		return fmt.Errorf("value input: %w", err)
	}

	threshold, err := r.resolveThreshold(req)
	if err != nil {
		return err
	}

	op := configString(req.Node.Config, "op", ">")
	fired, err := compare(value, op, threshold)
	if err != nil {
		return err
	}

	branch := scope.BranchFalse
	outputPort := pipeline.PortFalseBranch
	if fired {
		branch = scope.BranchTrue
		outputPort = pipeline.PortTrueBranch
	}

	if err := req.Publish(outputPort, v); err != nil {
		return err
	}

	nodes := req.Scopes.BranchSorted(req.Node.ID, branch)
	return req.Engine.ExecuteSubgraph(ctx, req.Pipeline, nodes, req.Exec, req.Scopes, req.Events)
}

func (r *ConditionalRunner) resolveThreshold(req *Request) (float64, error) {
	if v, ok, err := req.Input(pipeline.PortThresholdIn); err != nil {
		return 0, err
	} else if ok {
		threshold, err := asFloat(v)
		if err != nil {
			return 0, fmt.Errorf("threshold input: %w", err)
		}
		return threshold, nil
	}
	return configFloat(req.Node.Config, "threshold", 0), nil
}

func compare(value float64, op string, threshold float64) (bool, error) {
	switch op {
	case ">":
		return value > threshold, nil
	case ">=":
		return value >= threshold, nil
	case "<":
		return value < threshold, nil
	case "<=":
		return value <= threshold, nil
	case "==":
		return value == threshold, nil
	case "!=":
		return value != threshold, nil
	}
	return false, fmt.Errorf("unknown comparison operator %q", op)
}
