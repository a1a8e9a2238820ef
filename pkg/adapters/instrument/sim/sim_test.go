package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

func newSimulator(latency time.Duration) *Simulator {
	return New(Config{
		Channels:        []string{"488", "561"},
		WorkflowLatency: latency,
		ObjectCount:     3,
		Constants: ports.CoordinateConstants{
			MicronsPerPixelX: 0.65,
			MicronsPerPixelY: 0.65,
			ZStepMicrons:     2.0,
		},
	}, zap.NewNop())
}

func TestWorkflowLifecycle(t *testing.T) {
	s := newSimulator(20 * time.Millisecond)
	ctx := context.Background()

	handle, err := s.Start(ctx, map[string]any{"template": "zstack"})
	require.NoError(t, err)
	require.NotEmpty(t, handle)

	status, err := s.PollStatus(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, ports.WorkflowStatusRunning, status)

	require.Eventually(t, func() bool {
		status, err := s.PollStatus(ctx, handle)
		return err == nil && status == ports.WorkflowStatusCompleted
	}, time.Second, 5*time.Millisecond)

	volume, err := s.ChannelData(ctx, handle, "488")
	require.NoError(t, err)
	assert.Equal(t, "488", volume.Channel)
	assert.Len(t, volume.Voxels, volume.Width*volume.Height*volume.Depth)
}

func TestWorkflowFailure(t *testing.T) {
	s := newSimulator(0)
	ctx := context.Background()

	handle, err := s.Start(ctx, map[string]any{"sim_fail": true})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := s.PollStatus(ctx, handle)
		return err == nil && status == ports.WorkflowStatusFailed
	}, time.Second, time.Millisecond)
}

func TestUnknownHandle(t *testing.T) {
	s := newSimulator(0)
	ctx := context.Background()

	_, err := s.PollStatus(ctx, "nope")
	assert.Error(t, err)
	_, err = s.ChannelData(ctx, "nope", "488")
	assert.Error(t, err)
}

func TestAnalyzeProducesConfiguredObjectCount(t *testing.T) {
	s := newSimulator(0)
	ctx := context.Background()

	volume := s.synthesize("488")
	result, err := s.Analyze(ctx, map[string]*domain.Volume{"488": volume}, nil)
	require.NoError(t, err)

	assert.Len(t, result.Objects, 3)
	require.NotNil(t, result.Mask)
	assert.Equal(t, volume.Width, result.Mask.Width)

	// Objects are distinct and inside the volume
	seen := map[float64]bool{}
	for _, obj := range result.Objects {
		assert.False(t, seen[obj.Centroid.X])
		seen[obj.Centroid.X] = true
		assert.Greater(t, obj.Centroid.X, 0.0)
		assert.Less(t, obj.Centroid.X, float64(volume.Width))
	}
}

func TestVoxelStore(t *testing.T) {
	s := newSimulator(0)
	ctx := context.Background()

	channels, err := s.Channels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"488", "561"}, channels)

	volume, err := s.Volume(ctx, "561")
	require.NoError(t, err)
	assert.Equal(t, "561", volume.Channel)

	_, err = s.Volume(ctx, "640")
	assert.Error(t, err)
}

func TestConstants(t *testing.T) {
	s := newSimulator(0)

	constants, err := s.Constants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.65, constants.MicronsPerPixelX)
	assert.Equal(t, 2.0, constants.ZStepMicrons)
}
