package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

type nopMetrics struct{}

func (nopMetrics) RecordRunSubmitted(string)                        {}
func (nopMetrics) RecordRunCompleted(string, time.Duration)         {}
func (nopMetrics) RecordNodeExecuted(string, string, time.Duration) {}
func (nopMetrics) RecordForEachIteration(string)                    {}
func (nopMetrics) SetActiveRuns(int)                                {}

func newTestExecutor() *Executor {
	opts := DefaultOptions()
	opts.WorkflowPollInterval = time.Millisecond
	opts.WorkflowTimeout = time.Second
	return NewExecutor(zap.NewNop(), nopMetrics{}, opts)
}

// fakeWorkflowExecutor keys behavior off the start config's template:
// "fail" reports FAILED, "hang" never finishes, anything else completes
// on the first poll.
type fakeWorkflowExecutor struct {
	mu      sync.Mutex
	started []map[string]any
	handles map[string]string // handle -> template
}

func newFakeWorkflowExecutor() *fakeWorkflowExecutor {
	return &fakeWorkflowExecutor{handles: make(map[string]string)}
}

func (f *fakeWorkflowExecutor) Start(_ context.Context, config map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, config)
	handle := fmt.Sprintf("wf-%d", len(f.started))
	template, _ := config["template"].(string)
	f.handles[handle] = template
	return handle, nil
}

func (f *fakeWorkflowExecutor) PollStatus(_ context.Context, handle string) (ports.WorkflowStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.handles[handle] {
	case "fail":
		return ports.WorkflowStatusFailed, nil
	case "hang":
		return ports.WorkflowStatusRunning, nil
	}
	return ports.WorkflowStatusCompleted, nil
}

func (f *fakeWorkflowExecutor) ChannelData(_ context.Context, _, channel string) (*domain.Volume, error) {
	return &domain.Volume{Channel: channel, Width: 64, Height: 64, Depth: 8}, nil
}

func (f *fakeWorkflowExecutor) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

// fakeAnalyzer returns a fixed number of detections.
type fakeAnalyzer struct {
	objectCount int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, volumes map[string]*domain.Volume, _ map[string]any) (*ports.AnalysisResult, error) {
	objects := make([]domain.DetectedObject, f.objectCount)
	for i := range objects {
		offset := float64(10 * i)
		objects[i] = domain.DetectedObject{
			Label:      i + 1,
			Centroid:   domain.Position{X: offset, Y: offset},
			Bounds: domain.Box{
				Min: domain.Position{X: offset - 2, Y: offset - 2},
				Max: domain.Position{X: offset + 2, Y: offset + 2, Z: 2},
			},
			VoxelCount: 100,
		}
	}
	var mask *domain.Volume
	for _, v := range volumes {
		mask = &domain.Volume{Channel: v.Channel, Width: v.Width, Height: v.Height, Depth: v.Depth}
		break
	}
	return &ports.AnalysisResult{Mask: mask, Objects: objects}, nil
}

type fakeVoxelStore struct{}

func (fakeVoxelStore) Volume(_ context.Context, channel string) (*domain.Volume, error) {
	return &domain.Volume{Channel: channel, Width: 128, Height: 128, Depth: 16}, nil
}

func (fakeVoxelStore) Channels(context.Context) ([]string, error) {
	return []string{"488"}, nil
}

type fakePositionSource struct{}

func (fakePositionSource) CurrentPosition(context.Context) (domain.Position, error) {
	return domain.Position{X: 100, Y: 200, Z: 10}, nil
}

type fakeCoordinateConfig struct{}

func (fakeCoordinateConfig) Constants(context.Context) (ports.CoordinateConstants, error) {
	return ports.CoordinateConstants{MicronsPerPixelX: 1, MicronsPerPixelY: 1, ZStepMicrons: 1}, nil
}

func testServices(analyzer *fakeAnalyzer, workflows *fakeWorkflowExecutor) map[string]any {
	return map[string]any{
		ports.ServiceWorkflowExecution: workflows,
		ports.ServiceThresholdAnalysis: analyzer,
		ports.ServiceVoxelStorage:      fakeVoxelStore{},
		ports.ServicePositionSource:    fakePositionSource{},
		ports.ServiceCoordinateConfig:  fakeCoordinateConfig{},
	}
}
