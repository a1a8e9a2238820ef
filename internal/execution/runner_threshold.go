package execution

import (
	"context"
	"fmt"

	"github.com/scopeflow/scopeflow/internal/pipeline"
	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

// ThresholdRunner segments objects out of a volume. The volume comes
// from the volume input when connected; otherwise the runner falls back
// to reading the configured channels from voxel storage. The analysis
// itself is delegated to the injected analyzer, which works in pixel
// space; detected objects are mapped into stage coordinates using the
// coordinate-mapping constants and the current stage position, so an
// OBJECT output can feed a POSITION input directly.
//
// Config keys: "channels" (storage fallback), "settings" (passed to the
// analyzer opaquely).
type ThresholdRunner struct{}

func (r *ThresholdRunner) Run(ctx context.Context, req *Request) error {
	analyzer, err := serviceAs[ports.ThresholdAnalyzer](req, ports.ServiceThresholdAnalysis)
	if err != nil {
		return err
	}

	volumes, err := r.collectVolumes(ctx, req)
	if err != nil {
		return err
	}

	result, err := analyzer.Analyze(ctx, volumes, configMap(req.Node.Config, "settings"))
	if err != nil {
		return fmt.Errorf("threshold analysis: %w", err)
	}

	objects, err := r.toStage(ctx, req, result.Objects)
	if err != nil {
		return err
	}

	if err := req.Publish(pipeline.PortObjects, objects); err != nil {
		return err
	}
	if err := req.Publish(pipeline.PortMask, result.Mask); err != nil {
		return err
	}
	return req.Publish(pipeline.PortCount, len(objects))
}

// toStage converts pixel-space detections into stage coordinates using
// the instrument's coordinate constants, anchored at the current stage
// position.
func (r *ThresholdRunner) toStage(ctx context.Context, req *Request, objects []domain.DetectedObject) ([]domain.DetectedObject, error) {
	coords, err := serviceAs[ports.CoordinateConfig](req, ports.ServiceCoordinateConfig)
	if err != nil {
		return nil, err
	}
	positions, err := serviceAs[ports.PositionSource](req, ports.ServicePositionSource)
	if err != nil {
		return nil, err
	}

	constants, err := coords.Constants(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading coordinate constants: %w", err)
	}
	origin, err := positions.CurrentPosition(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stage position: %w", err)
	}

	mapPos := func(p domain.Position) domain.Position {
		return domain.Position{
			X: origin.X + p.X*constants.MicronsPerPixelX,
			Y: origin.Y + p.Y*constants.MicronsPerPixelY,
			Z: origin.Z + p.Z*constants.ZStepMicrons,
		}
	}

	mapped := make([]domain.DetectedObject, len(objects))
	for i, obj := range objects {
		obj.Centroid = mapPos(obj.Centroid)
		obj.Bounds = domain.Box{Min: mapPos(obj.Bounds.Min), Max: mapPos(obj.Bounds.Max)}
		mapped[i] = obj
	}
	return mapped, nil
}

func (r *ThresholdRunner) collectVolumes(ctx context.Context, req *Request) (map[string]*domain.Volume, error) {
	if v, ok, err := req.Input(pipeline.PortVolume); err != nil {
		return nil, err
	} else if ok {
		volume, isVolume := v.(*domain.Volume)
		if !isVolume {
			return nil, fmt.Errorf("volume input holds %T, not a volume", v)
		}
		return map[string]*domain.Volume{volume.Channel: volume}, nil
	}

	// No connected volume: read from storage instead.
	store, err := serviceAs[ports.VoxelStore](req, ports.ServiceVoxelStorage)
	if err != nil {
		return nil, err
	}
	channels := configStrings(req.Node.Config, "channels")
	if len(channels) == 0 {
		channels, err = store.Channels(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing channels: %w", err)
		}
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no volume input and voxel storage has no channels")
	}

	volumes := make(map[string]*domain.Volume, len(channels))
	for _, channel := range channels {
		volume, err := store.Volume(ctx, channel)
		if err != nil {
			return nil, fmt.Errorf("reading volume for channel %q: %w", channel, err)
		}
		volumes[channel] = volume
	}
	return volumes, nil
}
