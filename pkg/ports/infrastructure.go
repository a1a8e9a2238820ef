package ports

import (
	"context"
	"time"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// EventType classifies bus events.
type EventType string

const (
	EventTypeRunSubmitted     EventType = "run.submitted"
	EventTypeNodeStarted      EventType = "run.node_started"
	EventTypeNodeCompleted    EventType = "run.node_completed"
	EventTypeNodeError        EventType = "run.node_error"
	EventTypeRunProgress      EventType = "run.progress"
	EventTypeRunCompleted     EventType = "run.completed"
	EventTypeRunError         EventType = "run.error"
	EventTypeRunCancelled     EventType = "run.cancelled"
	EventTypeForEachIteration EventType = "run.foreach_iteration"
	EventTypeLog              EventType = "run.log"
)

// Event is one run-time event published onto the bus.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	NodeID    string         `json:"node_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventHandler consumes events delivered by a subscription.
type EventHandler func(ctx context.Context, event Event) error

// EventBus fans run events out to subscribers (websocket clients, the
// run monitor).
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

// PipelineStore persists pipeline documents by name.
type PipelineStore interface {
	Save(ctx context.Context, name string, doc []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// RunStore persists run records.
type RunStore interface {
	SaveRun(ctx context.Context, record *domain.RunRecord) error
	LoadRun(ctx context.Context, runID string) (*domain.RunRecord, error)
}

// MetricsCollector records engine metrics.
type MetricsCollector interface {
	RecordRunSubmitted(status string)
	RecordRunCompleted(status string, duration time.Duration)
	RecordNodeExecuted(nodeType, status string, duration time.Duration)
	RecordForEachIteration(nodeID string)
	SetActiveRuns(count int)
}
