package run

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor periodically reports the set of active runs. It is the
// operational heartbeat of the engine: a stuck run shows up here long
// before its timeout fires.
type Monitor struct {
	manager  *Manager
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewMonitor creates a new run monitor
func NewMonitor(manager *Manager, interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		manager:  manager,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the monitor
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go m.run()
}

// Stop stops the monitor
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
}

// run is the main monitoring loop
func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.check()
		}
	}
}

// check logs the current active-run snapshot
func (m *Monitor) check() {
	ids := m.manager.ActiveRunIDs()

	m.logger.Info("run monitor check",
		zap.Int("active", len(ids)),
		zap.Strings("run_ids", ids))
}
