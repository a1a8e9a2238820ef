package domain

import "time"

// Position is a stage coordinate in microns.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Box is an axis-aligned bounding box in stage coordinates.
type Box struct {
	Min Position `json:"min"`
	Max Position `json:"max"`
}

// Expand grows the box by the given margin (microns) on every side.
func (b Box) Expand(margin float64) Box {
	return Box{
		Min: Position{X: b.Min.X - margin, Y: b.Min.Y - margin, Z: b.Min.Z - margin},
		Max: Position{X: b.Max.X + margin, Y: b.Max.Y + margin, Z: b.Max.Z + margin},
	}
}

// Center returns the box center.
func (b Box) Center() Position {
	return Position{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// DetectedObject is one segmented object produced by an analysis step.
type DetectedObject struct {
	Label      int      `json:"label"`
	Centroid   Position `json:"centroid"`
	Bounds     Box      `json:"bounds"`
	VoxelCount int      `json:"voxel_count"`
}

// Volume is a single-channel image stack. Voxels may be nil when the
// volume is a reference to data held by the instrument rather than an
// in-process copy.
type Volume struct {
	Channel string   `json:"channel"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Depth   int      `json:"depth"`
	Voxels  []uint16 `json:"-"`
}

// RunStatus is the lifecycle state of one pipeline run.
type RunStatus string

const (
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is a terminal outcome.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// RunRecord is the persisted state of one pipeline run.
type RunRecord struct {
	RunID        string     `json:"run_id"`
	PipelineName string     `json:"pipeline_name"`
	Status       RunStatus  `json:"status"`
	Error        string     `json:"error,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// Progress over top-level nodes.
	NodesDone  int `json:"nodes_done"`
	NodesTotal int `json:"nodes_total"`
}
