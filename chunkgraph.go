package chunkgraph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/panoramicdata/chunkgraph/pkg/cache"
	"github.com/panoramicdata/chunkgraph/pkg/checkpoint"
	"github.com/panoramicdata/chunkgraph/pkg/config"
	"github.com/panoramicdata/chunkgraph/pkg/enrichment"
	"github.com/panoramicdata/chunkgraph/pkg/extractor"
	"github.com/panoramicdata/chunkgraph/pkg/graph"
	"github.com/panoramicdata/chunkgraph/pkg/logger"
	"github.com/panoramicdata/chunkgraph/pkg/resolver"
	"github.com/panoramicdata/chunkgraph/pkg/types"
)

// Config holds configuration for the pipeline.
type Config struct {
	// GraphName names the assembled graph.
	GraphName string
	// SimilarityThreshold is forwarded to the resolver.
	SimilarityThreshold float64
	// MaxCooccurrenceDistance is forwarded to the extractor.
	MaxCooccurrenceDistance int
	// MinRelationshipConfidence is forwarded to the extractor.
	MinRelationshipConfidence float64
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *Config {
	return &Config{
		GraphName:                 "chunkgraph",
		SimilarityThreshold:       resolver.DefaultSimilarityThreshold,
		MaxCooccurrenceDistance:   extractor.DefaultMaxDistance,
		MinRelationshipConfidence: extractor.DefaultMinConfidence,
	}
}

// Pipeline wires the resolver, extractor and consolidator behind a single
// Process call.
type Pipeline struct {
	resolver     *resolver.Resolver
	extractor    *extractor.CooccurrenceExtractor
	consolidator *extractor.Consolidator
	config       *Config
	logger       *slog.Logger
}

// NewPipeline creates a Pipeline. A nil config uses DefaultConfig; a nil
// logger uses slog.Default.
func NewPipeline(config *Config, logger *slog.Logger) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		resolver:     resolver.New(config.SimilarityThreshold, logger),
		extractor:    extractor.NewCooccurrence(config.MaxCooccurrenceDistance, config.MinRelationshipConfidence, logger),
		consolidator: extractor.NewConsolidator(logger),
		config:       config,
		logger:       logger,
	}
}

// NewPipelineFromConfig creates a Pipeline from a loaded configuration. A nil
// log argument builds the logger from the config's log section; an explicit
// logger wins over it.
func NewPipelineFromConfig(cfg *config.Config, log *slog.Logger) *Pipeline {
	if cfg == nil {
		return NewPipeline(nil, log)
	}
	if log == nil {
		log = logger.NewLogger(logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	}

	pipelineConfig := DefaultConfig()
	if cfg.Resolution.SimilarityThreshold > 0 {
		pipelineConfig.SimilarityThreshold = cfg.Resolution.SimilarityThreshold
	}
	if cfg.Extraction.MaxDistance > 0 {
		pipelineConfig.MaxCooccurrenceDistance = cfg.Extraction.MaxDistance
	}
	if cfg.Extraction.MinConfidence >= 0 {
		pipelineConfig.MinRelationshipConfidence = cfg.Extraction.MinConfidence
	}

	return NewPipeline(pipelineConfig, log)
}

// NewCacheFromConfig builds the enrichment cache from the config's cache
// section, opening the badger backing store when a path is configured.
func NewCacheFromConfig(cfg *config.Config, log *slog.Logger) (*cache.Cache, error) {
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second

	opts := []cache.Option{cache.WithLogger(log)}
	if cfg.Cache.BackingPath != "" {
		db, err := badger.Open(badger.DefaultOptions(cfg.Cache.BackingPath).WithLogger(nil))
		if err != nil {
			return nil, fmt.Errorf("failed to open cache backing store: %w", err)
		}
		opts = append(opts, cache.WithBackingStore(db))
	}

	return cache.New(ttl, opts...), nil
}

// NewEnrichmentFromConfig builds the enrichment service from the config's
// enrichment section.
func NewEnrichmentFromConfig(cfg *config.Config, enricher enrichment.Enricher, c *cache.Cache, log *slog.Logger) *enrichment.Service {
	return enrichment.NewService(enricher, c, cfg.Enrichment.Concurrency, log)
}

// Process resolves the batch, extracts and consolidates relationships, and
// assembles the graph. The input slices are not mutated. On cancellation no
// graph is returned; the error is the context's error.
func (p *Pipeline) Process(ctx context.Context, entities []*types.Entity, chunks []*types.Chunk) (*graph.Graph, error) {
	resolved, err := p.resolver.Resolve(ctx, entities)
	if err != nil {
		return nil, err
	}

	relationships, err := p.extractor.ExtractRelationships(ctx, resolved, chunks)
	if err != nil {
		return nil, err
	}

	consolidated, err := p.consolidator.Consolidate(ctx, relationships)
	if err != nil {
		return nil, err
	}

	linkRelated(resolved, consolidated)

	g := graph.New(p.config.GraphName)
	g.AddEntities(resolved)
	g.AddRelationships(consolidated)

	p.logger.Info("graph assembled",
		"graph_id", g.ID,
		"entities", len(resolved),
		"relationships", len(consolidated))

	return g, nil
}

// IngestChunks runs the full ingestion path: enrich every chunk through svc,
// convert candidates into entities with located source mentions, then
// Process. Chunks whose enrichment failed contribute no entities; their
// errors are logged and the batch completes.
func (p *Pipeline) IngestChunks(ctx context.Context, svc *enrichment.Service, chunks []*types.Chunk) (*graph.Graph, error) {
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return nil, fmt.Errorf("invalid chunk: %w", err)
		}
	}

	results, err := svc.EnrichChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	return p.Process(ctx, p.entitiesFromResults(results, chunks), chunks)
}

// ResumeIngest runs the ingestion path with per-stage checkpoints, so a
// crashed or cancelled run can be retried under the same batchID without
// redoing enrichment and resolution. The checkpoint is deleted once the
// graph is assembled.
func (p *Pipeline) ResumeIngest(ctx context.Context, svc *enrichment.Service, manager *checkpoint.Manager, batchID string, chunks []*types.Chunk) (*graph.Graph, error) {
	cp, resumed, err := manager.LoadOrCreate(ctx, batchID, chunks)
	if err != nil {
		return nil, err
	}
	if resumed {
		p.logger.Info("resuming batch from checkpoint", "batch_id", batchID, "step", cp.Step, "attempt", cp.AttemptCount)
		chunks = cp.Chunks
	}

	fail := func(cause error) (*graph.Graph, error) {
		if ctx.Err() == nil {
			if saveErr := manager.RecordError(ctx, cp, cause); saveErr != nil {
				p.logger.Error("failed to record checkpoint error", "batch_id", batchID, "error", saveErr)
			}
		}
		return nil, cause
	}

	if !cp.Reached(checkpoint.StepEnriched) {
		results, err := svc.EnrichChunks(ctx, chunks)
		if err != nil {
			return fail(err)
		}
		cp.Entities = p.entitiesFromResults(results, chunks)
		cp.Step = checkpoint.StepEnriched
		if err := manager.Save(ctx, cp); err != nil {
			return nil, err
		}
	}

	if !cp.Reached(checkpoint.StepResolved) {
		resolved, err := p.resolver.Resolve(ctx, cp.Entities)
		if err != nil {
			return fail(err)
		}
		cp.Resolved = resolved
		cp.Step = checkpoint.StepResolved
		if err := manager.Save(ctx, cp); err != nil {
			return nil, err
		}
	}

	if !cp.Reached(checkpoint.StepExtracted) {
		relationships, err := p.extractor.ExtractRelationships(ctx, cp.Resolved, chunks)
		if err != nil {
			return fail(err)
		}
		cp.Relationships = relationships
		cp.Step = checkpoint.StepExtracted
		if err := manager.Save(ctx, cp); err != nil {
			return nil, err
		}
	}

	if !cp.Reached(checkpoint.StepConsolidated) {
		consolidated, err := p.consolidator.Consolidate(ctx, cp.Relationships)
		if err != nil {
			return fail(err)
		}
		cp.Consolidated = consolidated
		cp.Step = checkpoint.StepConsolidated
		if err := manager.Save(ctx, cp); err != nil {
			return nil, err
		}
	}

	linkRelated(cp.Resolved, cp.Consolidated)

	g := graph.New(p.config.GraphName)
	g.AddEntities(cp.Resolved)
	g.AddRelationships(cp.Consolidated)

	if err := manager.Delete(ctx, batchID); err != nil {
		p.logger.Warn("failed to delete completed checkpoint", "batch_id", batchID, "error", err)
	}

	p.logger.Info("graph assembled",
		"graph_id", g.ID,
		"batch_id", batchID,
		"entities", len(cp.Resolved),
		"relationships", len(cp.Consolidated))

	return g, nil
}

// entitiesFromResults expands enrichment candidates into located entity
// mentions. Failed chunks contribute nothing; the failure is logged only.
func (p *Pipeline) entitiesFromResults(results []enrichment.Result, chunks []*types.Chunk) []*types.Entity {
	contents := make(map[string]string, len(chunks))
	for _, chunk := range chunks {
		contents[chunk.ID] = chunk.Content
	}

	var entities []*types.Entity
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			p.logger.Error("chunk enrichment failed", "chunk_id", res.ChunkID, "error", res.Err)
			continue
		}
		for _, candidate := range res.Candidates {
			for _, src := range locateMentions(candidate.Name, res.ChunkID, contents[res.ChunkID]) {
				entities = append(entities, enrichment.ToEntity(candidate, src))
			}
		}
	}
	if failed > 0 {
		p.logger.Warn("batch completed with enrichment failures", "failed_chunks", failed, "total_chunks", len(chunks))
	}
	return entities
}

// mentionContextMargin pads the context snippet around a located mention.
const mentionContextMargin = 30

// locateMentions finds every case-insensitive occurrence of name in content
// and builds one source observation per occurrence. Positions and lengths are
// byte offsets into the original content; the scan never lowercases the whole
// content, so multibyte characters whose lowercase form has a different byte
// length cannot shift the offsets. Case variants that change byte length
// (such as U+0130) are not matched.
func locateMentions(name, chunkID, content string) []types.EntitySource {
	if name == "" || len(content) < len(name) {
		return nil
	}

	var sources []types.EntitySource
	for pos := 0; pos+len(name) <= len(content); {
		if !strings.EqualFold(content[pos:pos+len(name)], name) {
			pos++
			continue
		}

		start := pos - mentionContextMargin
		if start < 0 {
			start = 0
		}
		end := pos + len(name) + mentionContextMargin
		if end > len(content) {
			end = len(content)
		}

		sources = append(sources, types.EntitySource{
			ChunkID:  chunkID,
			Position: pos,
			Length:   len(name),
			Context:  content[start:end],
		})
		pos += len(name)
	}
	return sources
}

// linkRelated populates each entity's RelatedIDs from the consolidated
// relationship set.
func linkRelated(entities []*types.Entity, relationships []*types.Relationship) {
	byID := make(map[string]*types.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}
	for _, r := range relationships {
		if source, ok := byID[r.SourceID]; ok {
			source.AddRelatedID(r.TargetID)
		}
		if target, ok := byID[r.TargetID]; ok {
			target.AddRelatedID(r.SourceID)
		}
	}
}
