package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// PipelineStore implements ports.PipelineStore using Redis
type PipelineStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPipelineStore creates a new Redis pipeline store
func NewPipelineStore(client *redis.Client, logger *zap.Logger) *PipelineStore {
	return &PipelineStore{
		client: client,
		logger: logger,
	}
}

// Save persists a pipeline document under its name (ports.PipelineStore interface)
func (s *PipelineStore) Save(ctx context.Context, name string, doc []byte) error {
	key := getPipelineKey(name)

	// Pipelines are user assets, no TTL
	if err := s.client.Set(ctx, key, doc, 0).Err(); err != nil {
		return fmt.Errorf("failed to save pipeline: %w", err)
	}

	s.logger.Debug("pipeline saved",
		zap.String("name", name),
		zap.Int("bytes", len(doc)))

	return nil
}

// Load retrieves a pipeline document by name (ports.PipelineStore interface)
func (s *PipelineStore) Load(ctx context.Context, name string) ([]byte, error) {
	key := getPipelineKey(name)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("pipeline not found: %s", name)
		}
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}

	return data, nil
}

// List returns the names of all stored pipelines (ports.PipelineStore interface)
func (s *PipelineStore) List(ctx context.Context) ([]string, error) {
	pattern := "scopeflow:pipeline:*"

	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	// Extract pipeline names from keys
	names := make([]string, 0, len(keys))
	prefix := "scopeflow:pipeline:"
	for _, key := range keys {
		if len(key) > len(prefix) {
			names = append(names, key[len(prefix):])
		}
	}
	sort.Strings(names)

	return names, nil
}

// Delete removes a pipeline document (ports.PipelineStore interface)
func (s *PipelineStore) Delete(ctx context.Context, name string) error {
	key := getPipelineKey(name)

	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("pipeline not found: %s", name)
	}

	s.logger.Debug("pipeline deleted",
		zap.String("name", name))

	return nil
}

// RunStore implements ports.RunStore using Redis with a TTL so old run
// records expire on their own.
type RunStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRunStore creates a new Redis run store
func NewRunStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RunStore {
	return &RunStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveRun persists a run record (ports.RunStore interface)
func (s *RunStore) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	key := getRunKey(record.RunID)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	s.logger.Debug("run record saved",
		zap.String("run_id", record.RunID),
		zap.String("status", string(record.Status)))

	return nil
}

// LoadRun retrieves a run record by ID (ports.RunStore interface)
func (s *RunStore) LoadRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	key := getRunKey(runID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get run record: %w", err)
	}

	var record domain.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}

	return &record, nil
}

// getPipelineKey returns the Redis key for a stored pipeline
func getPipelineKey(name string) string {
	return fmt.Sprintf("scopeflow:pipeline:%s", name)
}

// getRunKey returns the Redis key for a run record
func getRunKey(runID string) string {
	return fmt.Sprintf("scopeflow:run:%s", runID)
}
