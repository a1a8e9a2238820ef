// Package ports defines the interface contracts between the engine and
// its collaborators: injected instrument capabilities, persistence,
// the event bus and metrics. Adapters under pkg/adapters implement
// them; the engine depends only on these interfaces.
package ports
