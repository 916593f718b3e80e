package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panoramicdata/chunkgraph/pkg/types"
)

func testChunks() []*types.Chunk {
	return []*types.Chunk{{ID: "chunk-1", Content: "Microsoft launched Azure."}}
}

func TestManagerSaveLoadDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	cp := NewBatchCheckpoint("batch-1", testChunks())
	cp.Step = StepEnriched
	require.NoError(t, m.Save(ctx, cp))

	exists, err := m.Exists(ctx, "batch-1")
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := m.Load(ctx, "batch-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StepEnriched, loaded.Step)
	require.Len(t, loaded.Chunks, 1)
	assert.Equal(t, "chunk-1", loaded.Chunks[0].ID)

	require.NoError(t, m.Delete(ctx, "batch-1"))
	loaded, err = m.Load(ctx, "batch-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Deleting again is not an error.
	require.NoError(t, m.Delete(ctx, "batch-1"))
}

func TestManagerLoadOrCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	cp, resumed, err := m.LoadOrCreate(ctx, "batch-2", testChunks())
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, 1, cp.AttemptCount)
	require.NoError(t, m.Save(ctx, cp))

	cp2, resumed, err := m.LoadOrCreate(ctx, "batch-2", nil)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, 2, cp2.AttemptCount)
	assert.Len(t, cp2.Chunks, 1, "resume keeps the persisted chunks")
}

func TestValidateBatchID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", "a/b", `a\b`, "bad id", "semi;colon"} {
		_, err := m.Load(ctx, id)
		assert.ErrorIs(t, err, ErrInvalidBatchID, "id %q", id)
	}

	_, err = m.Load(ctx, "ok-batch_1.v2")
	assert.NoError(t, err)
}

func TestReachedAndCanRetry(t *testing.T) {
	t.Parallel()

	cp := NewBatchCheckpoint("batch-3", nil)
	assert.True(t, cp.Reached(StepInitial))
	assert.False(t, cp.Reached(StepResolved))

	cp.Step = StepConsolidated
	assert.True(t, cp.Reached(StepResolved))
	assert.False(t, cp.Reached(StepCompleted))

	assert.True(t, cp.CanRetry(3, time.Hour))
	cp.AttemptCount = 3
	assert.False(t, cp.CanRetry(3, time.Hour))

	cp.AttemptCount = 1
	cp.CreatedAt = time.Now().Add(-2 * time.Hour)
	assert.False(t, cp.CanRetry(3, time.Hour))
}

func TestCleanOld(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	fresh := NewBatchCheckpoint("fresh", nil)
	require.NoError(t, m.Save(ctx, fresh))

	stale := NewBatchCheckpoint("stale", nil)
	require.NoError(t, m.Save(ctx, stale))
	// Backdate the stale checkpoint on disk; Save would refresh the stamp.
	stale.LastUpdatedAt = time.Now().Add(-48 * time.Hour)
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "stale.json"), data, 0644))

	removed, err := m.CleanOld(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	checkpoints, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)
	assert.Equal(t, "fresh", checkpoints[0].BatchID)
}
