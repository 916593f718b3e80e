// Package chunkgraph builds knowledge graphs from enriched text chunks.
//
// Chunkgraph takes candidate entities discovered per chunk by an upstream
// enrichment layer, deduplicates them within the batch, extracts weighted
// co-occurrence relationships between the survivors, consolidates duplicate
// relationships, and assembles everything into a queryable in-memory graph.
//
// # Basic Usage
//
// Create a pipeline and process a batch:
//
//	log := logger.NewDefaultLogger(slog.LevelInfo)
//	pipeline := chunkgraph.NewPipeline(nil, log)
//
//	g, err := pipeline.Process(ctx, entities, chunks)
//	if err != nil {
//		log.Error("build failed", "error", err)
//		return
//	}
//
//	stats := g.ComputeStatistics()
//	fmt.Printf("entities=%d relationships=%d\n", stats.EntityCount, stats.RelationshipCount)
//
// # Enrichment Boundary
//
// When working directly from raw chunks, wire an enrichment.Enricher and a
// cache, and let the pipeline run the full ingestion:
//
//	c := cache.New(30 * time.Minute)
//	svc := enrichment.NewService(myEnricher, c, 8, log)
//	pipeline := chunkgraph.NewPipeline(nil, log)
//
//	g, err := pipeline.IngestChunks(ctx, svc, chunks)
//
// # Architecture
//
// The library follows a modular architecture:
//
//   - pkg/types: Core type definitions (Entity, Relationship, Chunk)
//   - pkg/normalizer: type-aware name normalization and alias generation
//   - pkg/resolver: intra-batch entity deduplication
//   - pkg/extractor: co-occurrence relationship extraction and consolidation
//   - pkg/graph: in-memory graph with lazy indexes, statistics and validation
//   - pkg/cache: concurrent TTL cache for enrichment results
//   - pkg/enrichment: boundary adapter for the upstream enrichment layer
//   - pkg/export: parquet and YAML exporters
//
// # Error Handling
//
// Validation failures surface as sentinel errors from pkg/types
// (ErrEmptyName, ErrEmptyEntityList, ...). Cancellation surfaces as the
// untouched context error, so errors.Is(err, context.Canceled) is reliable.
// Cancelled operations return no partial output.
package chunkgraph
