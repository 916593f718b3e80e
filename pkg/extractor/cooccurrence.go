// Package extractor infers relationships between entities from their
// positions in chunk text. The only extraction strategy implemented is
// co-occurrence: two entities observed within a bounded character distance
// in the same chunk are assumed related, with confidence decaying linearly
// with distance. Repeated observations are merged by the Consolidator.
package extractor

import (
	"context"
	"log/slog"

	"github.com/panoramicdata/chunkgraph/pkg/types"
)

const (
	// DefaultMaxDistance is the maximum character distance between span
	// midpoints for a co-occurrence to qualify.
	DefaultMaxDistance = 500
	// DefaultMinConfidence drops candidates whose decayed confidence is
	// too weak to be useful.
	DefaultMinConfidence = 0.3

	// snippetMargin pads the evidence context on both sides of the
	// co-occurring spans.
	snippetMargin = 20

	extractorName    = "cooccurrence"
	extractorVersion = "1.0.0"
)

// CooccurrenceExtractor emits candidate relationships for entity pairs that
// appear close together in the same chunk.
type CooccurrenceExtractor struct {
	maxDistance   int
	minConfidence float64
	logger        *slog.Logger
}

// NewCooccurrence creates an extractor. Non-positive maxDistance and
// out-of-range minConfidence fall back to the defaults; an explicit
// minConfidence of zero keeps every candidate.
func NewCooccurrence(maxDistance int, minConfidence float64, logger *slog.Logger) *CooccurrenceExtractor {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	if minConfidence < 0 || minConfidence > 1 {
		minConfidence = DefaultMinConfidence
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CooccurrenceExtractor{
		maxDistance:   maxDistance,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// chunkObservation is the closest co-occurrence of a pair within one chunk.
type chunkObservation struct {
	chunkID  string
	distance int
	loA, hiA int // span of entity a's closest source
	loB, hiB int // span of entity b's closest source
}

// ExtractRelationships scans every unordered pair of distinct entities and
// emits at most one bidirectional Mentions candidate per pair. Confidence is
// max(0, 1 - minDistance/maxDistance); candidates below the minimum
// confidence are dropped. The result is symmetric in input order.
// Cancellation is checked between pairs; on cancellation the partial result
// is discarded and ctx.Err() is returned.
func (x *CooccurrenceExtractor) ExtractRelationships(ctx context.Context, entities []*types.Entity, chunks []*types.Chunk) ([]*types.Relationship, error) {
	if len(entities) < 2 || len(chunks) == 0 {
		return []*types.Relationship{}, nil
	}

	contents := make(map[string]string, len(chunks))
	for _, chunk := range chunks {
		contents[chunk.ID] = chunk.Content
	}

	relationships := make([]*types.Relationship, 0)
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if rel := x.extractPair(entities[i], entities[j], contents); rel != nil {
				relationships = append(relationships, rel)
			}
		}
	}

	x.logger.Debug("extracted co-occurrence candidates",
		"entities", len(entities), "chunks", len(chunks), "candidates", len(relationships))
	return relationships, nil
}

// extractPair returns one candidate for (a, b), or nil when the pair never
// qualifies.
func (x *CooccurrenceExtractor) extractPair(a, b *types.Entity, contents map[string]string) *types.Relationship {
	observations := closestPerChunk(a, b)
	if len(observations) == 0 {
		return nil
	}

	minDistance := -1
	qualifying := observations[:0]
	for _, obs := range observations {
		if obs.distance > x.maxDistance {
			continue
		}
		qualifying = append(qualifying, obs)
		if minDistance < 0 || obs.distance < minDistance {
			minDistance = obs.distance
		}
	}
	if len(qualifying) == 0 {
		return nil
	}

	confidence := 1.0 - float64(minDistance)/float64(x.maxDistance)
	if confidence < 0 {
		confidence = 0
	}
	if confidence < x.minConfidence {
		return nil
	}

	rel := types.NewRelationship(a.ID, b.ID, types.RelationMentions)
	rel.Bidirectional = true
	rel.Confidence = confidence
	rel.Weight = confidence
	rel.Metadata = types.RelationshipMetadata{
		Extractor:        extractorName,
		ExtractorVersion: extractorVersion,
		ExtractedAt:      rel.CreatedAt,
	}
	for _, obs := range qualifying {
		obsConfidence := 1.0 - float64(obs.distance)/float64(x.maxDistance)
		if obsConfidence < 0 {
			obsConfidence = 0
		}
		rel.AddEvidence(types.Evidence{
			ChunkID:    obs.chunkID,
			Context:    snippet(contents[obs.chunkID], obs),
			Confidence: obsConfidence,
			Pattern:    extractorName,
			Distance:   obs.distance,
		})
		rel.UpdateMinDistance(obs.distance)
	}
	return rel
}

// closestPerChunk finds, for every chunk both entities were observed in, the
// pair of source records with the smallest midpoint distance.
func closestPerChunk(a, b *types.Entity) []chunkObservation {
	byChunk := make(map[string][]types.EntitySource)
	for _, src := range b.Sources {
		byChunk[src.ChunkID] = append(byChunk[src.ChunkID], src)
	}

	var observations []chunkObservation
	seen := make(map[string]int) // chunk id -> index in observations
	for _, srcA := range a.Sources {
		for _, srcB := range byChunk[srcA.ChunkID] {
			distance := srcA.Midpoint() - srcB.Midpoint()
			if distance < 0 {
				distance = -distance
			}
			obs := chunkObservation{
				chunkID:  srcA.ChunkID,
				distance: distance,
				loA:      srcA.Position,
				hiA:      srcA.Position + srcA.Length,
				loB:      srcB.Position,
				hiB:      srcB.Position + srcB.Length,
			}
			if idx, ok := seen[srcA.ChunkID]; ok {
				if distance < observations[idx].distance {
					observations[idx] = obs
				}
			} else {
				seen[srcA.ChunkID] = len(observations)
				observations = append(observations, obs)
			}
		}
	}
	return observations
}

// snippet cuts a context window covering both spans plus a small margin.
func snippet(content string, obs chunkObservation) string {
	if content == "" {
		return ""
	}
	lo := obs.loA
	if obs.loB < lo {
		lo = obs.loB
	}
	hi := obs.hiA
	if obs.hiB > hi {
		hi = obs.hiB
	}

	lo -= snippetMargin
	hi += snippetMargin
	if lo < 0 {
		lo = 0
	}
	if hi > len(content) {
		hi = len(content)
	}
	if lo >= hi {
		return ""
	}
	return content[lo:hi]
}
