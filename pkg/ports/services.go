package ports

import (
	"context"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Names under which service capabilities are injected into an execution
// context. Runners resolve their collaborators by these names.
const (
	ServiceWorkflowExecution = "workflow_execution"
	ServiceThresholdAnalysis = "threshold_analysis"
	ServiceVoxelStorage      = "voxel_storage"
	ServicePositionSource    = "position_source"
	ServiceCoordinateConfig  = "coordinate_config"
)

// WorkflowStatus is the observable state of an external acquisition.
type WorkflowStatus string

const (
	WorkflowStatusRunning   WorkflowStatus = "RUNNING"
	WorkflowStatusCompleted WorkflowStatus = "COMPLETED"
	WorkflowStatusFailed    WorkflowStatus = "FAILED"
	WorkflowStatusIdle      WorkflowStatus = "IDLE"
)

// WorkflowExecutor starts and monitors external acquisition workflows.
// The engine treats the capability as an opaque contract: Start returns
// a handle, PollStatus is sampled on a bounded interval until a terminal
// state, and produced data is read back keyed by channel.
type WorkflowExecutor interface {
	Start(ctx context.Context, config map[string]any) (handle string, err error)
	PollStatus(ctx context.Context, handle string) (WorkflowStatus, error)
	ChannelData(ctx context.Context, handle string, channel string) (*domain.Volume, error)
}

// AnalysisResult is what a threshold analysis produces.
type AnalysisResult struct {
	Mask    *domain.Volume
	Objects []domain.DetectedObject
}

// ThresholdAnalyzer segments objects out of one or more volumes.
type ThresholdAnalyzer interface {
	Analyze(ctx context.Context, volumesByChannel map[string]*domain.Volume, settings map[string]any) (*AnalysisResult, error)
}

// VoxelStore reads current volumes held by the instrument.
type VoxelStore interface {
	Volume(ctx context.Context, channel string) (*domain.Volume, error)
	Channels(ctx context.Context) ([]string, error)
}

// PositionSource reads the current stage position.
type PositionSource interface {
	CurrentPosition(ctx context.Context) (domain.Position, error)
}

// CoordinateConstants are the instrument's coordinate-mapping factors.
type CoordinateConstants struct {
	MicronsPerPixelX float64
	MicronsPerPixelY float64
	ZStepMicrons     float64
}

// CoordinateConfig exposes coordinate-mapping constants.
type CoordinateConfig interface {
	Constants(ctx context.Context) (CoordinateConstants, error)
}
