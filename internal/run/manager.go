package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scopeflow/scopeflow/internal/execution"
	"github.com/scopeflow/scopeflow/internal/pipeline"
	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

// EventTopic is the bus topic all run events are published on.
const EventTopic = "run.events"

// Manager coordinates pipeline runs
type Manager struct {
	executor *execution.Executor
	eventBus ports.EventBus
	runs     ports.RunStore
	metrics  ports.MetricsCollector
	services map[string]any
	logger   *zap.Logger

	runTimeout time.Duration

	// Track active runs
	active sync.Map // map[string]*activeRun
	count  int
	mu     sync.Mutex
	wg     sync.WaitGroup
}

// activeRun holds the handles needed to observe and stop one in-flight run
type activeRun struct {
	runID     string
	exec      *execution.Context
	cancel    context.CancelFunc
	startedAt time.Time
}

// NewManager creates a new run manager. The services map is injected
// into every run's execution context.
func NewManager(
	executor *execution.Executor,
	eventBus ports.EventBus,
	runs ports.RunStore,
	metrics ports.MetricsCollector,
	services map[string]any,
	logger *zap.Logger,
	runTimeout time.Duration,
) *Manager {
	return &Manager{
		executor:   executor,
		eventBus:   eventBus,
		runs:       runs,
		metrics:    metrics,
		services:   services,
		logger:     logger,
		runTimeout: runTimeout,
	}
}

// Submit validates a pipeline and starts executing it in the background.
// It returns the assigned run ID once persisted; execution progress is
// observable through the event bus and the run record.
func (m *Manager) Submit(ctx context.Context, pipelineName string, p *pipeline.Pipeline) (string, error) {
	if problems := p.Validate(); len(problems) > 0 {
		m.logger.Error("pipeline validation failed",
			zap.String("pipeline", pipelineName),
			zap.Strings("problems", problems))
		m.metrics.RecordRunSubmitted("rejected")
		return "", &execution.ValidationError{Problems: problems}
	}

	runID := uuid.New().String()
	record := &domain.RunRecord{
		RunID:        runID,
		PipelineName: pipelineName,
		Status:       domain.RunStatusSubmitted,
		SubmittedAt:  time.Now(),
	}

	if err := m.runs.SaveRun(ctx, record); err != nil {
		m.logger.Error("failed to save run record",
			zap.String("run_id", runID),
			zap.Error(err))
		return "", fmt.Errorf("failed to save run record: %w", err)
	}

	m.publish(ctx, ports.Event{
		ID:        uuid.New().String(),
		Type:      ports.EventTypeRunSubmitted,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      map[string]any{"pipeline": pipelineName},
	})

	ec := execution.NewContext(m.services)
	runCtx, cancel := context.WithTimeout(context.Background(), m.runTimeout)

	ar := &activeRun{
		runID:     runID,
		exec:      ec,
		cancel:    cancel,
		startedAt: time.Now(),
	}
	m.active.Store(runID, ar)
	m.adjustActive(1)

	m.metrics.RecordRunSubmitted(string(domain.RunStatusSubmitted))
	m.logger.Info("run submitted",
		zap.String("run_id", runID),
		zap.String("pipeline", pipelineName))

	m.wg.Add(1)
	go m.execute(runCtx, ar, record, p)

	return runID, nil
}

// execute drives one run to a terminal state
func (m *Manager) execute(ctx context.Context, ar *activeRun, record *domain.RunRecord, p *pipeline.Pipeline) {
	defer m.wg.Done()
	defer ar.cancel()
	defer func() {
		m.active.Delete(ar.runID)
		m.adjustActive(-1)
	}()

	record.Status = domain.RunStatusRunning
	m.saveRecord(record)

	// Translate a run timeout into a cooperative stop
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			ar.exec.Cancel()
		case <-watchdogDone:
		}
	}()

	sink := &busSink{
		runID:   ar.runID,
		bus:     m.eventBus,
		logger:  m.logger,
		record:  record,
		persist: m.saveRecord,
	}

	err := m.executor.Run(ctx, p, ar.exec, sink)
	elapsed := time.Since(ar.startedAt)

	now := time.Now()
	record.CompletedAt = &now

	switch {
	case err == nil:
		record.Status = domain.RunStatusCompleted
	case errors.Is(err, execution.ErrCancelled) && ctx.Err() == context.DeadlineExceeded:
		record.Status = domain.RunStatusFailed
		record.Error = "run timeout"
		m.logger.Warn("run timed out",
			zap.String("run_id", ar.runID),
			zap.Duration("elapsed", elapsed))
	case errors.Is(err, execution.ErrCancelled):
		record.Status = domain.RunStatusCancelled
	default:
		record.Status = domain.RunStatusFailed
		record.Error = err.Error()
	}

	m.saveRecord(record)
	m.metrics.RecordRunCompleted(string(record.Status), elapsed)
	m.logger.Info("run finished",
		zap.String("run_id", ar.runID),
		zap.String("status", string(record.Status)),
		zap.Duration("elapsed", elapsed))
}

// Status retrieves the current record of a run
func (m *Manager) Status(ctx context.Context, runID string) (*domain.RunRecord, error) {
	record, err := m.runs.LoadRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return record, nil
}

// Cancel requests a cooperative stop of a running pipeline. The run
// keeps executing until its current node finishes, then winds down.
func (m *Manager) Cancel(ctx context.Context, runID string) error {
	val, ok := m.active.Load(runID)
	if !ok {
		record, err := m.runs.LoadRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("run not found: %s", runID)
		}
		return fmt.Errorf("run already in terminal state: %s", record.Status)
	}

	ar := val.(*activeRun)
	ar.exec.Cancel()

	m.logger.Info("run cancellation requested",
		zap.String("run_id", runID))

	return nil
}

// ActiveCount returns the number of in-flight runs
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// ActiveRunIDs returns the IDs of in-flight runs
func (m *Manager) ActiveRunIDs() []string {
	var ids []string
	m.active.Range(func(key, _ interface{}) bool {
		ids = append(ids, key.(string))
		return true
	})
	return ids
}

// Shutdown cancels all active runs and waits for them to wind down, up
// to the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down run manager",
		zap.Int("active_runs", m.ActiveCount()))

	m.active.Range(func(_, value interface{}) bool {
		value.(*activeRun).exec.Cancel()
		return true
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("run manager shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out with %d runs still active", m.ActiveCount())
	}
}

// saveRecord persists a run record, logging instead of failing the run
// when storage is unavailable.
func (m *Manager) saveRecord(record *domain.RunRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.runs.SaveRun(ctx, record); err != nil {
		m.logger.Error("failed to save run record",
			zap.String("run_id", record.RunID),
			zap.Error(err))
	}
}

// publish sends an event onto the bus, logging publish failures
func (m *Manager) publish(ctx context.Context, event ports.Event) {
	if err := m.eventBus.Publish(ctx, EventTopic, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("run_id", event.RunID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}

func (m *Manager) adjustActive(delta int) {
	m.mu.Lock()
	m.count += delta
	count := m.count
	m.mu.Unlock()
	m.metrics.SetActiveRuns(count)
}
