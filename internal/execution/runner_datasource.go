package execution

import (
	"context"
	"fmt"

	"github.com/scopeflow/scopeflow/internal/pipeline"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

// DataSourceRunner publishes current instrument state: the live volume
// for a configured channel and the current stage position. It has no
// inputs.
//
// Config keys: "channel" (default: first channel the store reports).
type DataSourceRunner struct{}

func (r *DataSourceRunner) Run(ctx context.Context, req *Request) error {
	store, err := serviceAs[ports.VoxelStore](req, ports.ServiceVoxelStorage)
	if err != nil {
		return err
	}
	positions, err := serviceAs[ports.PositionSource](req, ports.ServicePositionSource)
	if err != nil {
		return err
	}

	channel := configString(req.Node.Config, "channel", "")
	if channel == "" {
		channels, err := store.Channels(ctx)
		if err != nil {
			return fmt.Errorf("listing channels: %w", err)
		}
		if len(channels) == 0 {
			return fmt.Errorf("voxel storage has no channels")
		}
		channel = channels[0]
	}

	volume, err := store.Volume(ctx, channel)
	if err != nil {
		return fmt.Errorf("reading volume for channel %q: %w", channel, err)
	}
	position, err := positions.CurrentPosition(ctx)
	if err != nil {
		return fmt.Errorf("reading stage position: %w", err)
	}

	if err := req.Publish(pipeline.PortVolume, volume); err != nil {
		return err
	}
	return req.Publish(pipeline.PortPosition, position)
}
