package execution

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeflow/scopeflow/internal/pipeline"
)

// externalCommandPipeline wires detect.count -> cmd.input.
func externalCommandPipeline(t *testing.T, config map[string]any) *pipeline.Pipeline {
	t.Helper()
	p := pipeline.New("external")
	addNode(t, p, "detect", pipeline.NodeTypeThreshold)
	cmd := addNode(t, p, "cmd", pipeline.NodeTypeExternalCommand)
	for k, v := range config {
		cmd.Config[k] = v
	}
	connect(t, p, "detect", pipeline.PortCount, "cmd", pipeline.PortInput)
	return p
}

func TestExternalCommandRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on cp")
	}

	// cp turns the serialized input into the expected output artifact,
	// so the result is the input value parsed back.
	p := externalCommandPipeline(t, map[string]any{
		"command": "cp",
		"args":    []any{"{input}", "{output}"},
	})
	ec := NewContext(testServices(&fakeAnalyzer{objectCount: 7}, newFakeWorkflowExecutor()))

	require.NoError(t, newTestExecutor().Run(context.Background(), p, ec, NopSink{}))

	v, ok := ec.Value(pipeline.PortID("cmd", pipeline.PortResult))
	require.True(t, ok)
	assert.Equal(t, float64(7), v)
}

func TestExternalCommandFailureBecomesNodeError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on false")
	}

	p := externalCommandPipeline(t, map[string]any{
		"command": "false",
	})
	ec := NewContext(testServices(&fakeAnalyzer{}, newFakeWorkflowExecutor()))

	err := newTestExecutor().Run(context.Background(), p, ec, NopSink{})
	require.Error(t, err)

	var nodeErr *NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "cmd", nodeErr.NodeID)
}

func TestExternalCommandTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sleep")
	}

	p := externalCommandPipeline(t, map[string]any{
		"command":         "sleep",
		"args":            []any{"5"},
		"timeout_seconds": 0.05,
	})
	ec := NewContext(testServices(&fakeAnalyzer{}, newFakeWorkflowExecutor()))

	err := newTestExecutor().Run(context.Background(), p, ec, NopSink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestExternalCommandMissingArtifact(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on true")
	}

	p := externalCommandPipeline(t, map[string]any{
		"command": "true",
	})
	ec := NewContext(testServices(&fakeAnalyzer{}, newFakeWorkflowExecutor()))

	err := newTestExecutor().Run(context.Background(), p, ec, NopSink{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "output artifact")
}
