package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeflow/scopeflow/internal/pipeline"
	"github.com/scopeflow/scopeflow/pkg/domain"
)

func addNode(t *testing.T, p *pipeline.Pipeline, id string, nodeType pipeline.NodeType) *pipeline.Node {
	t.Helper()
	n, err := pipeline.NewNode(id, nodeType, id)
	require.NoError(t, err)
	require.NoError(t, p.AddNode(n))
	return n
}

func connect(t *testing.T, p *pipeline.Pipeline, srcNode, srcPort, tgtNode, tgtPort string) {
	t.Helper()
	_, err := p.AddConnection(srcNode, pipeline.PortID(srcNode, srcPort), tgtNode, pipeline.PortID(tgtNode, tgtPort))
	require.NoError(t, err)
}

// detectLoopPipeline builds detect -> loop -> acquire, where the loop
// iterates over detect's objects and acquires each one.
func detectLoopPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p := pipeline.New("detect-and-acquire")
	addNode(t, p, "detect", pipeline.NodeTypeThreshold)
	addNode(t, p, "loop", pipeline.NodeTypeForEach)
	acquire := addNode(t, p, "acquire", pipeline.NodeTypeWorkflow)
	acquire.Config["template"] = "per-object"

	connect(t, p, "detect", pipeline.PortObjects, "loop", pipeline.PortCollection)
	connect(t, p, "loop", pipeline.PortCurrentItem, "acquire", pipeline.PortBoundingObject)
	return p
}

func TestRunEmitsOneIterationEventPerElement(t *testing.T) {
	p := detectLoopPipeline(t)
	workflows := newFakeWorkflowExecutor()
	ec := NewContext(testServices(&fakeAnalyzer{objectCount: 3}, workflows))
	rec := &Recorder{}

	err := newTestExecutor().Run(context.Background(), p, ec, rec)
	require.NoError(t, err)

	var iterations []RecordedEvent
	for _, e := range rec.Events() {
		if e.Kind == "foreach_iteration" {
			iterations = append(iterations, e)
		}
	}
	require.Len(t, iterations, 3)
	for i, e := range iterations {
		assert.Equal(t, "loop", e.NodeID)
		assert.Equal(t, i+1, e.Current)
		assert.Equal(t, 3, e.Total)
	}

	// The body ran once per element against the shared instrument.
	assert.Equal(t, 3, workflows.startCount())

	kinds := rec.Kinds()
	assert.Equal(t, "pipeline_completed", kinds[len(kinds)-1])
}

func TestRunIterationContextsAreIsolated(t *testing.T) {
	p := detectLoopPipeline(t)
	workflows := newFakeWorkflowExecutor()
	ec := NewContext(testServices(&fakeAnalyzer{objectCount: 2}, workflows))

	require.NoError(t, newTestExecutor().Run(context.Background(), p, ec, NopSink{}))

	// Each iteration got its own region derived from its own object.
	require.Equal(t, 2, workflows.startCount())
	first := workflows.started[0]["region"].(domain.Box)
	second := workflows.started[1]["region"].(domain.Box)
	assert.NotEqual(t, first, second)

	// Per-iteration values never escape into the run context.
	_, ok := ec.Value(pipeline.PortID("loop", pipeline.PortCurrentItem))
	assert.False(t, ok)
	// The loop's completion trigger does.
	_, ok = ec.Value(pipeline.PortID("loop", pipeline.PortCompleted))
	assert.True(t, ok)
}

// Deserialized pipelines carry whatever port ids their document
// declares. Per-iteration values must land on the loop's declared
// output ports so body nodes wired to them can read them.
func TestForEachDeliversValuesOnDeserializedPortIDs(t *testing.T) {
	port := func(id, name string, pt pipeline.PortType, dir pipeline.Direction, required bool) pipeline.PortDict {
		return pipeline.PortDict{ID: id, Name: name, PortType: string(pt), Direction: string(dir), Required: required}
	}
	d := &pipeline.PipelineDict{
		Name: "imported",
		Nodes: []pipeline.NodeDict{
			{
				ID: "detect", NodeType: string(pipeline.NodeTypeThreshold), Name: "detect",
				Inputs: []pipeline.PortDict{
					port("d-vol", pipeline.PortVolume, pipeline.PortTypeVolume, pipeline.DirectionInput, false),
				},
				Outputs: []pipeline.PortDict{
					port("d-obj", pipeline.PortObjects, pipeline.PortTypeObjectList, pipeline.DirectionOutput, false),
					port("d-mask", pipeline.PortMask, pipeline.PortTypeVolume, pipeline.DirectionOutput, false),
					port("d-count", pipeline.PortCount, pipeline.PortTypeScalar, pipeline.DirectionOutput, false),
				},
			},
			{
				ID: "loop", NodeType: string(pipeline.NodeTypeForEach), Name: "loop",
				Inputs: []pipeline.PortDict{
					port("l-col", pipeline.PortCollection, pipeline.PortTypeObjectList, pipeline.DirectionInput, true),
				},
				Outputs: []pipeline.PortDict{
					port("l-item", pipeline.PortCurrentItem, pipeline.PortTypeObject, pipeline.DirectionOutput, false),
					port("l-idx", pipeline.PortIndex, pipeline.PortTypeScalar, pipeline.DirectionOutput, false),
					port("l-done", pipeline.PortCompleted, pipeline.PortTypeTrigger, pipeline.DirectionOutput, false),
				},
			},
			{
				ID: "cond", NodeType: string(pipeline.NodeTypeConditional), Name: "cond",
				Config: map[string]any{"op": ">=", "threshold": 0},
				Inputs: []pipeline.PortDict{
					port("c-val", pipeline.PortValue, pipeline.PortTypeScalar, pipeline.DirectionInput, true),
				},
				Outputs: []pipeline.PortDict{
					port("c-true", pipeline.PortTrueBranch, pipeline.PortTypeAny, pipeline.DirectionOutput, false),
					port("c-false", pipeline.PortFalseBranch, pipeline.PortTypeAny, pipeline.DirectionOutput, false),
				},
			},
		},
		Connections: []pipeline.ConnectionDict{
			{ID: "e1", SourceNodeID: "detect", SourcePortID: "d-obj", TargetNodeID: "loop", TargetPortID: "l-col"},
			{ID: "e2", SourceNodeID: "loop", SourcePortID: "l-idx", TargetNodeID: "cond", TargetPortID: "c-val"},
		},
	}

	p, err := pipeline.FromDict(d)
	require.NoError(t, err)
	require.Empty(t, p.Validate())

	ec := NewContext(testServices(&fakeAnalyzer{objectCount: 2}, newFakeWorkflowExecutor()))
	rec := &Recorder{}
	require.NoError(t, newTestExecutor().Run(context.Background(), p, ec, rec))

	condRuns := 0
	for _, e := range rec.Events() {
		if e.Kind == "node_started" && e.NodeID == "cond" {
			condRuns++
		}
	}
	// The body's conditional read the loop index once per element.
	assert.Equal(t, 2, condRuns)

	kinds := rec.Kinds()
	assert.Equal(t, "pipeline_completed", kinds[len(kinds)-1])
	_, ok := ec.Value("l-done")
	assert.True(t, ok)
}

func conditionalPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p := pipeline.New("branch-on-count")
	addNode(t, p, "detect", pipeline.NodeTypeThreshold)
	cond := addNode(t, p, "cond", pipeline.NodeTypeConditional)
	cond.Config["op"] = ">"
	cond.Config["threshold"] = 5
	yes := addNode(t, p, "yes", pipeline.NodeTypeWorkflow)
	yes.Config["template"] = "acquire-dense"
	no := addNode(t, p, "no", pipeline.NodeTypeWorkflow)
	no.Config["template"] = "acquire-sparse"

	connect(t, p, "detect", pipeline.PortCount, "cond", pipeline.PortValue)
	connect(t, p, "cond", pipeline.PortTrueBranch, "yes", pipeline.PortTrigger)
	connect(t, p, "cond", pipeline.PortFalseBranch, "no", pipeline.PortTrigger)
	return p
}

func TestConditionalFiresTrueBranchOnly(t *testing.T) {
	p := conditionalPipeline(t)
	workflows := newFakeWorkflowExecutor()
	ec := NewContext(testServices(&fakeAnalyzer{objectCount: 10}, workflows))
	rec := &Recorder{}

	require.NoError(t, newTestExecutor().Run(context.Background(), p, ec, rec))

	started := map[string]bool{}
	for _, e := range rec.Events() {
		if e.Kind == "node_started" {
			started[e.NodeID] = true
		}
	}
	assert.True(t, started["yes"])
	assert.False(t, started["no"])

	// The fired branch output carries the input value through.
	v, ok := ec.Value(pipeline.PortID("cond", pipeline.PortTrueBranch))
	require.True(t, ok)
	assert.Equal(t, 10, v)
	_, ok = ec.Value(pipeline.PortID("cond", pipeline.PortFalseBranch))
	assert.False(t, ok)
}

func TestConditionalFiresFalseBranchOnly(t *testing.T) {
	p := conditionalPipeline(t)
	workflows := newFakeWorkflowExecutor()
	ec := NewContext(testServices(&fakeAnalyzer{objectCount: 3}, workflows))
	rec := &Recorder{}

	require.NoError(t, newTestExecutor().Run(context.Background(), p, ec, rec))

	started := map[string]bool{}
	for _, e := range rec.Events() {
		if e.Kind == "node_started" {
			started[e.NodeID] = true
		}
	}
	assert.False(t, started["yes"])
	assert.True(t, started["no"])
}

func TestNodeErrorAbortsRemainingNodes(t *testing.T) {
	p := pipeline.New("chain")
	a := addNode(t, p, "a", pipeline.NodeTypeWorkflow)
	a.Config["template"] = "ok"
	b := addNode(t, p, "b", pipeline.NodeTypeWorkflow)
	b.Config["template"] = "fail"
	c := addNode(t, p, "c", pipeline.NodeTypeWorkflow)
	c.Config["template"] = "ok"

	connect(t, p, "a", pipeline.PortCompleted, "b", pipeline.PortTrigger)
	connect(t, p, "b", pipeline.PortCompleted, "c", pipeline.PortTrigger)

	workflows := newFakeWorkflowExecutor()
	ec := NewContext(testServices(&fakeAnalyzer{}, workflows))
	rec := &Recorder{}

	err := newTestExecutor().Run(context.Background(), p, ec, rec)
	require.Error(t, err)

	var nodeErr *NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "b", nodeErr.NodeID)

	var sawCompletedA, sawStartedB, sawErrorB, sawStartedC bool
	var pipelineError string
	for _, e := range rec.Events() {
		switch {
		case e.Kind == "node_completed" && e.NodeID == "a":
			sawCompletedA = true
		case e.Kind == "node_started" && e.NodeID == "b":
			sawStartedB = true
		case e.Kind == "node_error" && e.NodeID == "b":
			sawErrorB = true
		case e.Kind == "node_started" && e.NodeID == "c":
			sawStartedC = true
		case e.Kind == "pipeline_error":
			pipelineError = e.Message
		}
	}
	assert.True(t, sawCompletedA)
	assert.True(t, sawStartedB)
	assert.True(t, sawErrorB)
	assert.False(t, sawStartedC, "no node after the failure may start")
	assert.Contains(t, pipelineError, "b")
}

// cancelAfterSink cancels the run once a given node completes for the
// first time.
type cancelAfterSink struct {
	*Recorder
	ec     *Context
	target string
	fired  bool
}

func (s *cancelAfterSink) NodeCompleted(nodeID string) {
	s.Recorder.NodeCompleted(nodeID)
	if nodeID == s.target && !s.fired {
		s.fired = true
		s.ec.Cancel()
	}
}

func TestCancelBetweenIterations(t *testing.T) {
	p := detectLoopPipeline(t)
	workflows := newFakeWorkflowExecutor()
	ec := NewContext(testServices(&fakeAnalyzer{objectCount: 5}, workflows))
	rec := &Recorder{}
	sink := &cancelAfterSink{Recorder: rec, ec: ec, target: "acquire"}

	err := newTestExecutor().Run(context.Background(), p, ec, sink)
	require.ErrorIs(t, err, ErrCancelled)

	acquireStarts, iterations := 0, 0
	var sawError, sawCompleted, sawCancelled bool
	for _, e := range rec.Events() {
		switch e.Kind {
		case "node_started":
			if e.NodeID == "acquire" {
				acquireStarts++
			}
		case "foreach_iteration":
			iterations++
		case "pipeline_error":
			sawError = true
		case "pipeline_completed":
			sawCompleted = true
		case "pipeline_cancelled":
			sawCancelled = true
		}
	}
	assert.Equal(t, 1, acquireStarts, "iteration 2's body must never start")
	assert.Equal(t, 1, iterations)
	assert.True(t, sawCancelled)
	assert.False(t, sawError)
	assert.False(t, sawCompleted)
}

func TestRunAbortsOnValidationFailure(t *testing.T) {
	p := pipeline.New("invalid")
	addNode(t, p, "loop", pipeline.NodeTypeForEach) // required collection unconnected

	rec := &Recorder{}
	err := newTestExecutor().Run(context.Background(), p, NewContext(nil), rec)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Problems)

	// Nothing ran: the only event is the terminal error.
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, "pipeline_error", rec.Events()[0].Kind)
}

func TestWorkflowPollTimeout(t *testing.T) {
	p := pipeline.New("stuck")
	wf := addNode(t, p, "wf", pipeline.NodeTypeWorkflow)
	wf.Config["template"] = "hang"
	wf.Config["timeout_seconds"] = 0.02
	wf.Config["poll_interval_seconds"] = 0.001

	workflows := newFakeWorkflowExecutor()
	ec := NewContext(testServices(&fakeAnalyzer{}, workflows))

	err := newTestExecutor().Run(context.Background(), p, ec, NopSink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var nodeErr *NodeExecutionError
	assert.ErrorAs(t, err, &nodeErr)
}

func TestThresholdMapsObjectsToStageCoordinates(t *testing.T) {
	p := pipeline.New("detect-only")
	addNode(t, p, "detect", pipeline.NodeTypeThreshold)

	ec := NewContext(testServices(&fakeAnalyzer{objectCount: 2}, newFakeWorkflowExecutor()))
	require.NoError(t, newTestExecutor().Run(context.Background(), p, ec, NopSink{}))

	v, ok := ec.Value(pipeline.PortID("detect", pipeline.PortObjects))
	require.True(t, ok)
	objects := v.([]domain.DetectedObject)
	require.Len(t, objects, 2)

	// The fake stage sits at (100, 200, 10) with 1 micron per pixel.
	assert.Equal(t, domain.Position{X: 100, Y: 200, Z: 10}, objects[0].Centroid)
	assert.Equal(t, domain.Position{X: 110, Y: 210, Z: 10}, objects[1].Centroid)

	count, ok := ec.Value(pipeline.PortID("detect", pipeline.PortCount))
	require.True(t, ok)
	assert.Equal(t, 2, count)
}

func TestDataSourcePublishesInstrumentState(t *testing.T) {
	p := pipeline.New("state")
	addNode(t, p, "stage", pipeline.NodeTypeDataSource)

	ec := NewContext(testServices(&fakeAnalyzer{}, newFakeWorkflowExecutor()))
	require.NoError(t, newTestExecutor().Run(context.Background(), p, ec, NopSink{}))

	v, ok := ec.Value(pipeline.PortID("stage", pipeline.PortVolume))
	require.True(t, ok)
	assert.Equal(t, "488", v.(*domain.Volume).Channel)

	pos, ok := ec.Value(pipeline.PortID("stage", pipeline.PortPosition))
	require.True(t, ok)
	assert.Equal(t, domain.Position{X: 100, Y: 200, Z: 10}, pos)
}

func TestPartialResultsRemainInspectableAfterAbort(t *testing.T) {
	p := pipeline.New("chain")
	a := addNode(t, p, "a", pipeline.NodeTypeWorkflow)
	a.Config["template"] = "ok"
	a.Config["channels"] = []any{"488"}
	b := addNode(t, p, "b", pipeline.NodeTypeWorkflow)
	b.Config["template"] = "fail"
	connect(t, p, "a", pipeline.PortCompleted, "b", pipeline.PortTrigger)

	workflows := newFakeWorkflowExecutor()
	ec := NewContext(testServices(&fakeAnalyzer{}, workflows))

	err := newTestExecutor().Run(context.Background(), p, ec, NopSink{})
	require.Error(t, err)

	// a's outputs survived the abort for diagnosis.
	v, ok := ec.Value(pipeline.PortID("a", pipeline.PortVolume))
	require.True(t, ok)
	assert.Equal(t, "488", v.(*domain.Volume).Channel)
}

func TestRunIsRepeatable(t *testing.T) {
	p := detectLoopPipeline(t)
	workflows := newFakeWorkflowExecutor()
	exec := newTestExecutor()

	for i := 0; i < 2; i++ {
		ec := NewContext(testServices(&fakeAnalyzer{objectCount: 2}, workflows))
		require.NoError(t, exec.Run(context.Background(), p, ec, NopSink{}))
	}
	// The graph itself holds no run state; both runs drove the body.
	assert.Equal(t, 4, workflows.startCount())
}

func TestRunnerForIsExhaustive(t *testing.T) {
	for _, nodeType := range pipeline.NodeTypes {
		r, err := runnerFor(nodeType)
		require.NoError(t, err, "node type %s has no runner", nodeType)
		assert.NotNil(t, r)
	}
}

func TestCancelledRunReturnsDistinctOutcome(t *testing.T) {
	p := detectLoopPipeline(t)
	ec := NewContext(testServices(&fakeAnalyzer{objectCount: 3}, newFakeWorkflowExecutor()))
	ec.Cancel()

	rec := &Recorder{}
	err := newTestExecutor().Run(context.Background(), p, ec, rec)
	require.ErrorIs(t, err, ErrCancelled)
	assert.False(t, errors.As(err, new(*NodeExecutionError)))

	kinds := rec.Kinds()
	assert.Equal(t, "pipeline_cancelled", kinds[len(kinds)-1])
}
