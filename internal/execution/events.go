package execution

import (
	"sync"

	"go.uber.org/zap"
)

// EventSink receives the run-time event stream of one run. Exactly one
// terminal event (PipelineCompleted, PipelineError or PipelineCancelled)
// is emitted per run, plus a full stream of per-node events.
type EventSink interface {
	NodeStarted(nodeID string)
	NodeCompleted(nodeID string)
	NodeError(nodeID, message string)
	PipelineProgress(current, total int)
	PipelineCompleted()
	PipelineError(message string)
	PipelineCancelled()
	ForEachIteration(nodeID string, current, total int)
	Log(message string)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) NodeStarted(string)                {}
func (NopSink) NodeCompleted(string)              {}
func (NopSink) NodeError(string, string)          {}
func (NopSink) PipelineProgress(int, int)         {}
func (NopSink) PipelineCompleted()                {}
func (NopSink) PipelineError(string)              {}
func (NopSink) PipelineCancelled()                {}
func (NopSink) ForEachIteration(string, int, int) {}
func (NopSink) Log(string)                        {}

// ZapSink logs every event as a structured log line.
type ZapSink struct {
	Logger *zap.Logger
}

func (s *ZapSink) NodeStarted(nodeID string) {
	s.Logger.Info("node started", zap.String("node_id", nodeID))
}

func (s *ZapSink) NodeCompleted(nodeID string) {
	s.Logger.Info("node completed", zap.String("node_id", nodeID))
}

func (s *ZapSink) NodeError(nodeID, message string) {
	s.Logger.Error("node error",
		zap.String("node_id", nodeID),
		zap.String("message", message))
}

func (s *ZapSink) PipelineProgress(current, total int) {
	s.Logger.Debug("pipeline progress",
		zap.Int("current", current),
		zap.Int("total", total))
}

func (s *ZapSink) PipelineCompleted() {
	s.Logger.Info("pipeline completed")
}

func (s *ZapSink) PipelineError(message string) {
	s.Logger.Error("pipeline error", zap.String("message", message))
}

func (s *ZapSink) PipelineCancelled() {
	s.Logger.Info("pipeline cancelled")
}

func (s *ZapSink) ForEachIteration(nodeID string, current, total int) {
	s.Logger.Info("foreach iteration",
		zap.String("node_id", nodeID),
		zap.Int("current", current),
		zap.Int("total", total))
}

func (s *ZapSink) Log(message string) {
	s.Logger.Info(message)
}

// RecordedEvent is one entry captured by a Recorder.
type RecordedEvent struct {
	Kind    string
	NodeID  string
	Message string
	Current int
	Total   int
}

// Recorder captures the event stream in order. Used by tests and by the
// run manager to keep the last events of a run inspectable.
type Recorder struct {
	mu     sync.Mutex
	events []RecordedEvent
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns just the event kinds, in order.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (r *Recorder) record(e RecordedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) NodeStarted(nodeID string) {
	r.record(RecordedEvent{Kind: "node_started", NodeID: nodeID})
}

func (r *Recorder) NodeCompleted(nodeID string) {
	r.record(RecordedEvent{Kind: "node_completed", NodeID: nodeID})
}

func (r *Recorder) NodeError(nodeID, message string) {
	r.record(RecordedEvent{Kind: "node_error", NodeID: nodeID, Message: message})
}

func (r *Recorder) PipelineProgress(current, total int) {
	r.record(RecordedEvent{Kind: "pipeline_progress", Current: current, Total: total})
}

func (r *Recorder) PipelineCompleted() {
	r.record(RecordedEvent{Kind: "pipeline_completed"})
}

func (r *Recorder) PipelineError(message string) {
	r.record(RecordedEvent{Kind: "pipeline_error", Message: message})
}

func (r *Recorder) PipelineCancelled() {
	r.record(RecordedEvent{Kind: "pipeline_cancelled"})
}

func (r *Recorder) ForEachIteration(nodeID string, current, total int) {
	r.record(RecordedEvent{Kind: "foreach_iteration", NodeID: nodeID, Current: current, Total: total})
}

func (r *Recorder) Log(message string) {
	r.record(RecordedEvent{Kind: "log", Message: message})
}
