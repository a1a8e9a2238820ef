package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// PipelineStore implements ports.PipelineStore using an in-memory map.
// This is for testing and single-process deployments.
type PipelineStore struct {
	docs map[string][]byte
	mu   sync.RWMutex
}

// NewPipelineStore creates a new in-memory pipeline store
func NewPipelineStore() *PipelineStore {
	return &PipelineStore{
		docs: make(map[string][]byte),
	}
}

// Save persists a pipeline document under its name (ports.PipelineStore interface)
func (s *PipelineStore) Save(ctx context.Context, name string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to avoid aliasing caller buffers
	cp := make([]byte, len(doc))
	copy(cp, doc)
	s.docs[name] = cp
	return nil
}

// Load retrieves a pipeline document by name (ports.PipelineStore interface)
func (s *PipelineStore) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[name]
	if !ok {
		return nil, fmt.Errorf("pipeline not found: %s", name)
	}

	cp := make([]byte, len(doc))
	copy(cp, doc)
	return cp, nil
}

// List returns the names of all stored pipelines (ports.PipelineStore interface)
func (s *PipelineStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Delete removes a pipeline document (ports.PipelineStore interface)
func (s *PipelineStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[name]; !ok {
		return fmt.Errorf("pipeline not found: %s", name)
	}

	delete(s.docs, name)
	return nil
}

// RunStore implements ports.RunStore using an in-memory map.
type RunStore struct {
	runs map[string]domain.RunRecord
	mu   sync.RWMutex
}

// NewRunStore creates a new in-memory run store
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]domain.RunRecord),
	}
}

// SaveRun persists a run record (ports.RunStore interface)
func (s *RunStore) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid mutations through the caller's pointer
	s.runs[record.RunID] = *record
	return nil
}

// LoadRun retrieves a run record by ID (ports.RunStore interface)
func (s *RunStore) LoadRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	cp := record
	return &cp, nil
}
