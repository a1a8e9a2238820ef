package run

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

// busSink bridges one run's execution event stream onto the event bus
// and keeps the run record's progress counters current.
type busSink struct {
	runID   string
	bus     ports.EventBus
	logger  *zap.Logger
	record  *domain.RunRecord
	persist func(*domain.RunRecord)
}

func (s *busSink) emit(eventType ports.EventType, nodeID string, data map[string]any) {
	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RunID:     s.runID,
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Data:      data,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.bus.Publish(ctx, EventTopic, event); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("run_id", s.runID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

func (s *busSink) NodeStarted(nodeID string) {
	s.emit(ports.EventTypeNodeStarted, nodeID, nil)
}

func (s *busSink) NodeCompleted(nodeID string) {
	s.emit(ports.EventTypeNodeCompleted, nodeID, nil)
}

func (s *busSink) NodeError(nodeID, message string) {
	s.emit(ports.EventTypeNodeError, nodeID, map[string]any{"error": message})
}

func (s *busSink) PipelineProgress(current, total int) {
	s.record.NodesDone = current
	s.record.NodesTotal = total
	s.persist(s.record)
	s.emit(ports.EventTypeRunProgress, "", map[string]any{
		"current": current,
		"total":   total,
	})
}

func (s *busSink) PipelineCompleted() {
	s.emit(ports.EventTypeRunCompleted, "", nil)
}

func (s *busSink) PipelineError(message string) {
	s.emit(ports.EventTypeRunError, "", map[string]any{"error": message})
}

func (s *busSink) PipelineCancelled() {
	s.emit(ports.EventTypeRunCancelled, "", nil)
}

func (s *busSink) ForEachIteration(nodeID string, current, total int) {
	s.emit(ports.EventTypeForEachIteration, nodeID, map[string]any{
		"current": current,
		"total":   total,
	})
}

func (s *busSink) Log(message string) {
	s.emit(ports.EventTypeLog, "", map[string]any{"message": message})
}
