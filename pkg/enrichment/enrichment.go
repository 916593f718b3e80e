// Package enrichment is the boundary to the upstream LLM enrichment layer.
// It does not call a language model itself: the caller supplies an Enricher
// that returns raw candidate-entity payloads per chunk, and this package
// repairs and decodes those payloads, caches them, and converts candidates
// into entity records ready for resolution.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/panoramicdata/chunkgraph/pkg/cache"
	"github.com/panoramicdata/chunkgraph/pkg/normalizer"
	"github.com/panoramicdata/chunkgraph/pkg/types"
	"github.com/panoramicdata/chunkgraph/pkg/utils"
)

// Enricher produces a raw candidate-entity payload for one chunk. Payloads
// are expected to be JSON but are repaired before decoding, since LLM output
// is frequently malformed.
type Enricher interface {
	EnrichChunk(ctx context.Context, chunk *types.Chunk) (string, error)
}

// candidateList accepts the wrapped payload shapes different models produce.
type candidateList struct {
	Entities   []types.CandidateEntity `json:"entities"`
	Candidates []types.CandidateEntity `json:"candidates"`
}

func (l *candidateList) list() []types.CandidateEntity {
	if len(l.Entities) > 0 {
		return l.Entities
	}
	return l.Candidates
}

// ParseCandidates repairs and decodes a raw enrichment payload. Both a bare
// JSON array and a wrapped object ({"entities": [...]} or
// {"candidates": [...]}) are accepted. Candidates without a name are
// dropped; confidence is clamped to [0,1].
func ParseCandidates(raw string) ([]types.CandidateEntity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		repaired = raw
	}

	var candidates []types.CandidateEntity
	if err := json.Unmarshal([]byte(repaired), &candidates); err != nil {
		var wrapped candidateList
		if err := json.Unmarshal([]byte(repaired), &wrapped); err != nil {
			return nil, fmt.Errorf("undecodable enrichment payload: %w", err)
		}
		candidates = wrapped.list()
	}

	valid := candidates[:0]
	for _, c := range candidates {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if c.Confidence < 0 {
			c.Confidence = 0
		}
		if c.Confidence > 1 {
			c.Confidence = 1
		}
		valid = append(valid, c)
	}
	return valid, nil
}

// ToEntity converts a candidate into an Entity with one source observation.
// The normalized name and generated aliases come from the normalizer, and
// the candidate's free-form type hint is mapped onto the closed enum.
func ToEntity(candidate types.CandidateEntity, source types.EntitySource) *types.Entity {
	entityType := types.ParseEntityType(candidate.Type)
	e := types.NewEntity(candidate.Name, entityType, normalizer.Normalize(candidate.Name, entityType))
	if candidate.Confidence > 0 {
		e.Confidence = candidate.Confidence
	}
	for _, alias := range normalizer.GenerateAliases(candidate.Name, entityType) {
		e.AddAlias(alias)
	}
	e.AddSource(source)
	return e
}

// Result carries the enrichment outcome for one chunk. A failed chunk keeps
// its error here; failures degrade to an empty candidate list rather than
// aborting the batch.
type Result struct {
	ChunkID    string
	Candidates []types.CandidateEntity
	Err        error
}

// Service fans enrichment calls out over a bounded worker pool, consulting
// the shared cache before calling the enricher.
type Service struct {
	enricher    Enricher
	cache       *cache.Cache
	concurrency int
	logger      *slog.Logger
}

// NewService creates a Service. The cache may be nil to disable caching; a
// non-positive concurrency falls back to utils.DefaultConcurrency.
func NewService(enricher Enricher, c *cache.Cache, concurrency int, logger *slog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = utils.DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{enricher: enricher, cache: c, concurrency: concurrency, logger: logger}
}

// EnrichChunks enriches every chunk and gathers the results into a completed
// batch, one Result per chunk in input order. The pipeline downstream
// consumes a finished batch, never a stream.
func (s *Service) EnrichChunks(ctx context.Context, chunks []*types.Chunk) ([]Result, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	pool := utils.NewWorkerPool(s.concurrency, func(ctx context.Context, chunk *types.Chunk) (Result, error) {
		candidates, err := s.enrichChunk(ctx, chunk)
		return Result{ChunkID: chunk.ID, Candidates: candidates, Err: err}, nil
	})

	results, errs := pool.ProcessItems(ctx, chunks)
	for i, err := range errs {
		if err != nil {
			// Cancellation or a worker panic, not an enricher failure.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			results[i] = Result{ChunkID: chunks[i].ID, Err: err}
		}
	}
	return results, nil
}

func (s *Service) enrichChunk(ctx context.Context, chunk *types.Chunk) ([]types.CandidateEntity, error) {
	if s.cache != nil {
		if candidates, ok := s.cache.TryGet(chunk.ID); ok {
			return candidates, nil
		}
	}

	raw, err := s.enricher.EnrichChunk(ctx, chunk)
	if err != nil {
		return nil, fmt.Errorf("enrich chunk %s: %w", chunk.ID, err)
	}
	candidates, err := ParseCandidates(raw)
	if err != nil {
		return nil, fmt.Errorf("parse candidates for chunk %s: %w", chunk.ID, err)
	}

	if s.cache != nil {
		s.cache.Set(chunk.ID, candidates, 0)
	}
	return candidates, nil
}
