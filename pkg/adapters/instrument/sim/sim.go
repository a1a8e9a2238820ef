// Package sim implements the instrument capabilities against a
// deterministic in-process simulator. It exists so pipelines can be
// authored and exercised without acquisition hardware attached.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

// Simulated volume dimensions.
const (
	volumeWidth  = 256
	volumeHeight = 256
	volumeDepth  = 16
)

// Config holds simulator settings
type Config struct {
	Channels        []string
	WorkflowLatency time.Duration
	ObjectCount     int
	Constants       ports.CoordinateConstants
}

// Simulator implements WorkflowExecutor, ThresholdAnalyzer, VoxelStore,
// PositionSource and CoordinateConfig against synthetic data.
type Simulator struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	workflows map[string]*simWorkflow
}

type simWorkflow struct {
	startedAt time.Time
	fail      bool
}

// New creates a new simulator
func New(cfg Config, logger *zap.Logger) *Simulator {
	if cfg.ObjectCount <= 0 {
		cfg.ObjectCount = 1
	}
	return &Simulator{
		cfg:       cfg,
		logger:    logger,
		workflows: make(map[string]*simWorkflow),
	}
}

// Start begins a simulated acquisition (ports.WorkflowExecutor interface).
// The workflow reports RUNNING until the configured latency has elapsed.
// Setting "sim_fail" to true in the workflow config makes it end FAILED.
func (s *Simulator) Start(ctx context.Context, config map[string]any) (string, error) {
	handle := uuid.New().String()
	fail, _ := config["sim_fail"].(bool)

	s.mu.Lock()
	s.workflows[handle] = &simWorkflow{
		startedAt: time.Now(),
		fail:      fail,
	}
	s.mu.Unlock()

	s.logger.Debug("simulated workflow started",
		zap.String("handle", handle),
		zap.Any("template", config["template"]))

	return handle, nil
}

// PollStatus reports the simulated workflow state (ports.WorkflowExecutor interface)
func (s *Simulator) PollStatus(ctx context.Context, handle string) (ports.WorkflowStatus, error) {
	s.mu.Lock()
	wf, ok := s.workflows[handle]
	s.mu.Unlock()

	if !ok {
		return ports.WorkflowStatusIdle, fmt.Errorf("unknown workflow handle: %s", handle)
	}

	if time.Since(wf.startedAt) < s.cfg.WorkflowLatency {
		return ports.WorkflowStatusRunning, nil
	}
	if wf.fail {
		return ports.WorkflowStatusFailed, nil
	}
	return ports.WorkflowStatusCompleted, nil
}

// ChannelData returns the synthetic volume produced by a finished
// workflow (ports.WorkflowExecutor interface)
func (s *Simulator) ChannelData(ctx context.Context, handle string, channel string) (*domain.Volume, error) {
	s.mu.Lock()
	_, ok := s.workflows[handle]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unknown workflow handle: %s", handle)
	}
	return s.synthesize(channel), nil
}

// Analyze segments synthetic objects out of the given volumes
// (ports.ThresholdAnalyzer interface). Detections are reported in pixel
// space; the engine maps them into stage coordinates.
func (s *Simulator) Analyze(ctx context.Context, volumesByChannel map[string]*domain.Volume, settings map[string]any) (*ports.AnalysisResult, error) {
	if len(volumesByChannel) == 0 {
		return nil, fmt.Errorf("no volumes to analyze")
	}

	// Mask mirrors the shape of any input volume
	var mask *domain.Volume
	for _, v := range volumesByChannel {
		mask = &domain.Volume{
			Channel: v.Channel,
			Width:   v.Width,
			Height:  v.Height,
			Depth:   v.Depth,
		}
		break
	}

	objects := make([]domain.DetectedObject, s.cfg.ObjectCount)
	for i := range objects {
		// Spread objects along the diagonal, away from the borders
		cx := float64((i + 1) * volumeWidth / (s.cfg.ObjectCount + 1))
		cy := float64((i + 1) * volumeHeight / (s.cfg.ObjectCount + 1))
		cz := float64(volumeDepth / 2)
		objects[i] = domain.DetectedObject{
			Label:    i + 1,
			Centroid: domain.Position{X: cx, Y: cy, Z: cz},
			Bounds: domain.Box{
				Min: domain.Position{X: cx - 5, Y: cy - 5, Z: cz - 1},
				Max: domain.Position{X: cx + 5, Y: cy + 5, Z: cz + 1},
			},
			VoxelCount: 100 + 10*i,
		}
	}

	s.logger.Debug("simulated analysis",
		zap.Int("volumes", len(volumesByChannel)),
		zap.Int("objects", len(objects)))

	return &ports.AnalysisResult{Mask: mask, Objects: objects}, nil
}

// Volume returns the synthetic volume for a channel (ports.VoxelStore interface)
func (s *Simulator) Volume(ctx context.Context, channel string) (*domain.Volume, error) {
	for _, c := range s.cfg.Channels {
		if c == channel {
			return s.synthesize(channel), nil
		}
	}
	return nil, fmt.Errorf("unknown channel: %s", channel)
}

// Channels lists the configured channels (ports.VoxelStore interface)
func (s *Simulator) Channels(ctx context.Context) ([]string, error) {
	channels := make([]string, len(s.cfg.Channels))
	copy(channels, s.cfg.Channels)
	return channels, nil
}

// CurrentPosition reports the simulated stage position (ports.PositionSource interface)
func (s *Simulator) CurrentPosition(ctx context.Context) (domain.Position, error) {
	// The simulated stage is parked at its home position
	return domain.Position{X: 1000, Y: 1000, Z: 50}, nil
}

// Constants returns the configured coordinate-mapping factors
// (ports.CoordinateConfig interface)
func (s *Simulator) Constants(ctx context.Context) (ports.CoordinateConstants, error) {
	return s.cfg.Constants, nil
}

// synthesize builds a deterministic gradient volume for a channel
func (s *Simulator) synthesize(channel string) *domain.Volume {
	voxels := make([]uint16, volumeWidth*volumeHeight*volumeDepth)
	seed := uint16(0)
	for _, b := range []byte(channel) {
		seed += uint16(b)
	}
	for i := range voxels {
		voxels[i] = seed + uint16(i%251)
	}
	return &domain.Volume{
		Channel: channel,
		Width:   volumeWidth,
		Height:  volumeHeight,
		Depth:   volumeDepth,
		Voxels:  voxels,
	}
}
