package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

func TestPipelineStoreRoundTrip(t *testing.T) {
	store := NewPipelineStore()
	ctx := context.Background()

	doc := []byte(`{"name":"scan","nodes":[],"connections":[]}`)
	require.NoError(t, store.Save(ctx, "scan", doc))

	loaded, err := store.Load(ctx, "scan")
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)

	// Mutating the returned buffer must not affect the stored copy
	loaded[0] = 'x'
	again, err := store.Load(ctx, "scan")
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestPipelineStoreListSorted(t *testing.T) {
	store := NewPipelineStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "b-scan", []byte("{}")))
	require.NoError(t, store.Save(ctx, "a-scan", []byte("{}")))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-scan", "b-scan"}, names)
}

func TestPipelineStoreMissing(t *testing.T) {
	store := NewPipelineStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "nope")
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, "nope"))
}

func TestPipelineStoreDelete(t *testing.T) {
	store := NewPipelineStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "scan", []byte("{}")))
	require.NoError(t, store.Delete(ctx, "scan"))

	_, err := store.Load(ctx, "scan")
	assert.Error(t, err)
}

func TestRunStoreRoundTrip(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	record := &domain.RunRecord{
		RunID:        "run-1",
		PipelineName: "scan",
		Status:       domain.RunStatusRunning,
		SubmittedAt:  time.Now(),
	}
	require.NoError(t, store.SaveRun(ctx, record))

	// Later mutations through the original pointer must not leak in
	record.Status = domain.RunStatusFailed

	loaded, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, loaded.Status)
	assert.Equal(t, "scan", loaded.PipelineName)
}

func TestRunStoreMissing(t *testing.T) {
	store := NewRunStore()

	_, err := store.LoadRun(context.Background(), "nope")
	assert.Error(t, err)
}
