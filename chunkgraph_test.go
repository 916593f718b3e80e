package chunkgraph

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panoramicdata/chunkgraph/pkg/cache"
	"github.com/panoramicdata/chunkgraph/pkg/checkpoint"
	"github.com/panoramicdata/chunkgraph/pkg/config"
	"github.com/panoramicdata/chunkgraph/pkg/enrichment"
	"github.com/panoramicdata/chunkgraph/pkg/normalizer"
	"github.com/panoramicdata/chunkgraph/pkg/types"
)

func newEntity(name string, entityType types.EntityType, chunkID string, position int) *types.Entity {
	e := types.NewEntity(name, entityType, normalizer.Normalize(name, entityType))
	e.AddSource(types.EntitySource{ChunkID: chunkID, Position: position, Length: len(name)})
	return e
}

func TestProcessSingleCooccurrence(t *testing.T) {
	t.Parallel()

	chunk := &types.Chunk{ID: "chunk1", Content: "Microsoft launched Azure cloud platform."}
	entities := []*types.Entity{
		newEntity("Microsoft", types.EntityTypeOrganization, "chunk1", 0),
		newEntity("Azure", types.EntityTypeProduct, "chunk1", 20),
	}

	g, err := NewPipeline(nil, nil).Process(context.Background(), entities, []*types.Chunk{chunk})
	require.NoError(t, err)

	require.Len(t, g.Entities, 2)
	require.Len(t, g.Relationships, 1)

	rel := g.Relationships[0]
	assert.Equal(t, types.RelationMentions, rel.Type)
	assert.True(t, rel.Bidirectional)
	assert.Greater(t, rel.Confidence, 0.0)
	require.NotEmpty(t, rel.Evidence)
	assert.Contains(t, rel.Evidence[0].Context, "Microsoft")
	assert.Contains(t, rel.Evidence[0].Context, "Azure")

	// Consolidation links both endpoints.
	for _, e := range g.Entities {
		assert.Len(t, e.RelatedIDs, 1)
	}
}

func TestProcessDistantEntitiesNoRelationship(t *testing.T) {
	t.Parallel()

	content := make([]byte, 300)
	for i := range content {
		content[i] = 'x'
	}
	copy(content[0:], "Alice")
	copy(content[255:], "Bob")
	chunk := &types.Chunk{ID: "chunk1", Content: string(content)}

	entities := []*types.Entity{
		newEntity("Alice", types.EntityTypePerson, "chunk1", 0),
		newEntity("Bob", types.EntityTypePerson, "chunk1", 255),
	}

	config := DefaultConfig()
	config.MaxCooccurrenceDistance = 50

	g, err := NewPipeline(config, nil).Process(context.Background(), entities, []*types.Chunk{chunk})
	require.NoError(t, err)
	assert.Len(t, g.Entities, 2)
	assert.Empty(t, g.Relationships)
}

func TestProcessMergesEquivalentOrganizations(t *testing.T) {
	t.Parallel()

	chunk := &types.Chunk{ID: "chunk1", Content: "Microsoft Corporation, also written Microsoft Corp., reported earnings."}
	entities := []*types.Entity{
		newEntity("Microsoft Corporation", types.EntityTypeOrganization, "chunk1", 0),
		newEntity("Microsoft Corp.", types.EntityTypeOrganization, "chunk1", 36),
	}

	g, err := NewPipeline(nil, nil).Process(context.Background(), entities, []*types.Chunk{chunk})
	require.NoError(t, err)

	require.Len(t, g.Entities, 1)
	survivor := g.Entities[0]
	names := append([]string{survivor.Name}, survivor.Aliases...)
	assert.Contains(t, names, "Microsoft Corporation")
	assert.Contains(t, names, "Microsoft Corp.")
	assert.Equal(t, 2, survivor.Frequency)
	assert.Len(t, survivor.Sources, 2)
	assert.Empty(t, g.Relationships, "merged entity cannot co-occur with itself")
}

func TestProcessAllPairs(t *testing.T) {
	t.Parallel()

	chunk := &types.Chunk{ID: "chunk1", Content: "Alice met Bob and Carol for lunch."}
	entities := []*types.Entity{
		newEntity("Alice", types.EntityTypePerson, "chunk1", 0),
		newEntity("Bob", types.EntityTypePerson, "chunk1", 10),
		newEntity("Carol", types.EntityTypePerson, "chunk1", 18),
	}

	g, err := NewPipeline(nil, nil).Process(context.Background(), entities, []*types.Chunk{chunk})
	require.NoError(t, err)

	require.Len(t, g.Relationships, 3)
	seen := map[string]bool{}
	for _, r := range g.Relationships {
		key := r.PairKey()
		assert.False(t, seen[key], "duplicate pair %s", key)
		seen[key] = true
	}
}

func TestProcessCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entities := []*types.Entity{newEntity("Alice", types.EntityTypePerson, "chunk1", 0)}
	g, err := NewPipeline(nil, nil).Process(ctx, entities, []*types.Chunk{{ID: "chunk1", Content: "Alice"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, g)
}

type fixtureEnricher struct{}

func (fixtureEnricher) EnrichChunk(ctx context.Context, chunk *types.Chunk) (string, error) {
	if chunk.ID == "broken" {
		return "", fmt.Errorf("upstream unavailable")
	}
	return `[
		{"name": "Microsoft", "type": "organization", "confidence": 0.95},
		{"name": "Azure", "type": "product", "confidence": 0.9}
	]`, nil
}

func TestIngestChunks(t *testing.T) {
	t.Parallel()

	svc := enrichment.NewService(fixtureEnricher{}, cache.New(0), 4, nil)
	chunks := []*types.Chunk{
		{ID: "chunk1", Content: "Microsoft launched Azure cloud platform."},
		{ID: "broken", Content: "unreachable content"},
	}

	g, err := NewPipeline(nil, nil).IngestChunks(context.Background(), svc, chunks)
	require.NoError(t, err)

	require.Len(t, g.Entities, 2)
	require.Len(t, g.Relationships, 1)
	assert.Empty(t, g.Validate())

	microsoft := g.GetEntitiesByName("Microsoft")
	require.Len(t, microsoft, 1)
	require.NotEmpty(t, microsoft[0].Sources)
	assert.Equal(t, "chunk1", microsoft[0].Sources[0].ChunkID)
	assert.Equal(t, 0, microsoft[0].Sources[0].Position)
}

type countingEnricher struct {
	inner enrichment.Enricher
	calls atomic.Int64
}

func (c *countingEnricher) EnrichChunk(ctx context.Context, chunk *types.Chunk) (string, error) {
	c.calls.Add(1)
	return c.inner.EnrichChunk(ctx, chunk)
}

func TestResumeIngest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	manager, err := checkpoint.NewManager(t.TempDir())
	require.NoError(t, err)

	counting := &countingEnricher{inner: fixtureEnricher{}}
	svc := enrichment.NewService(counting, nil, 2, nil)
	pipeline := NewPipeline(nil, nil)

	chunks := []*types.Chunk{{ID: "chunk1", Content: "Microsoft launched Azure cloud platform."}}

	g, err := pipeline.ResumeIngest(ctx, svc, manager, "batch-1", chunks)
	require.NoError(t, err)
	assert.Len(t, g.Entities, 2)
	assert.Equal(t, int64(1), counting.calls.Load())

	// Completed batches remove their checkpoint.
	exists, err := manager.Exists(ctx, "batch-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestResumeIngestSkipsCompletedStages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	manager, err := checkpoint.NewManager(t.TempDir())
	require.NoError(t, err)

	chunks := []*types.Chunk{{ID: "chunk1", Content: "Microsoft launched Azure cloud platform."}}

	// Seed a checkpoint already past enrichment.
	cp := checkpoint.NewBatchCheckpoint("batch-2", chunks)
	cp.Entities = []*types.Entity{
		newEntity("Microsoft", types.EntityTypeOrganization, "chunk1", 0),
		newEntity("Azure", types.EntityTypeProduct, "chunk1", 19),
	}
	cp.Step = checkpoint.StepEnriched
	require.NoError(t, manager.Save(ctx, cp))

	counting := &countingEnricher{inner: fixtureEnricher{}}
	svc := enrichment.NewService(counting, nil, 2, nil)

	g, err := NewPipeline(nil, nil).ResumeIngest(ctx, svc, manager, "batch-2", chunks)
	require.NoError(t, err)
	assert.Len(t, g.Entities, 2)
	assert.Len(t, g.Relationships, 1)
	assert.Equal(t, int64(0), counting.calls.Load(), "enrichment stage must be skipped on resume")
}

func TestIngestChunksRejectsInvalidChunk(t *testing.T) {
	t.Parallel()

	svc := enrichment.NewService(fixtureEnricher{}, nil, 1, nil)
	_, err := NewPipeline(nil, nil).IngestChunks(context.Background(), svc, []*types.Chunk{{ID: "", Content: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmptyChunkID)
}

func TestLocateMentionsByteOffsets(t *testing.T) {
	t.Parallel()

	content := "Microsoft partnered with MICROSOFT resellers; microsoft won."
	sources := locateMentions("Microsoft", "chunk-1", content)
	require.Len(t, sources, 3)
	for _, src := range sources {
		got := content[src.Position : src.Position+src.Length]
		assert.True(t, strings.EqualFold("Microsoft", got), "span %q at %d must cover the mention", got, src.Position)
		assert.Contains(t, src.Context, got)
	}
}

func TestLocateMentionsMultibytePrefix(t *testing.T) {
	t.Parallel()

	// U+0130 lowercases to a longer byte sequence; offsets must still index
	// the original content.
	content := "İstanbul saw Microsoft grow."
	sources := locateMentions("Microsoft", "chunk-1", content)
	require.Len(t, sources, 1)
	assert.Equal(t, 14, sources[0].Position)
	assert.Equal(t, "Microsoft", content[sources[0].Position:sources[0].Position+sources[0].Length])
}

func TestNewPipelineFromConfig(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Resolution.SimilarityThreshold = 0.9
	cfg.Extraction.MaxDistance = 60
	cfg.Extraction.MinConfidence = 0

	pipeline := NewPipelineFromConfig(cfg, nil)
	require.NotNil(t, pipeline)
	assert.InDelta(t, 0.9, pipeline.config.SimilarityThreshold, 1e-9)
	assert.Equal(t, 60, pipeline.config.MaxCooccurrenceDistance)
	assert.Zero(t, pipeline.config.MinRelationshipConfidence)

	// Distant pair within the configured window still qualifies because the
	// minimum confidence is explicitly zero.
	chunk := &types.Chunk{ID: "chunk-1", Content: string(make([]byte, 120))}
	entities := []*types.Entity{
		newEntity("Alpha", types.EntityTypeConcept, "chunk-1", 0),
		newEntity("Beta", types.EntityTypeConcept, "chunk-1", 55),
	}
	g, err := pipeline.Process(context.Background(), entities, []*types.Chunk{chunk})
	require.NoError(t, err)
	assert.Len(t, g.Relationships, 1)
}
