package instrument

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scopeflow/scopeflow/internal/config"
	"github.com/scopeflow/scopeflow/pkg/adapters/instrument/sim"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

// Services bundles the capabilities one instrument provider exposes.
type Services struct {
	Workflows   ports.WorkflowExecutor
	Analyzer    ports.ThresholdAnalyzer
	Voxels      ports.VoxelStore
	Positions   ports.PositionSource
	Coordinates ports.CoordinateConfig
}

// New creates the instrument service bundle based on provider
func New(cfg *config.InstrumentConfig, logger *zap.Logger) (*Services, error) {
	switch cfg.Provider {
	case "sim":
		simulator := sim.New(sim.Config{
			Channels:        cfg.SimChannels,
			WorkflowLatency: cfg.SimWorkflowLatency,
			ObjectCount:     cfg.SimObjectCount,
			Constants: ports.CoordinateConstants{
				MicronsPerPixelX: cfg.MicronsPerPixelX,
				MicronsPerPixelY: cfg.MicronsPerPixelY,
				ZStepMicrons:     cfg.ZStepMicrons,
			},
		}, logger)
		return &Services{
			Workflows:   simulator,
			Analyzer:    simulator,
			Voxels:      simulator,
			Positions:   simulator,
			Coordinates: simulator,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported instrument provider: %s", cfg.Provider)
	}
}
