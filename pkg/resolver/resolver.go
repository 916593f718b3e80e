// Package resolver deduplicates entities within a batch. Same-type entities
// whose names normalize to the same key, share an alias, or clear a
// similarity threshold are clustered and merged into a single survivor.
//
// Clustering is O(n^2) per type partition. That is acceptable at chunk-batch
// scale; corpus-scale deduplication would need blocking before pairwise
// comparison.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/panoramicdata/chunkgraph/pkg/normalizer"
	"github.com/panoramicdata/chunkgraph/pkg/types"
)

// DefaultSimilarityThreshold is the minimum normalized-name similarity for
// two entities to be considered duplicates.
const DefaultSimilarityThreshold = 0.85

// Resolver clusters and merges duplicate entities.
type Resolver struct {
	threshold float64
	logger    *slog.Logger
}

// New creates a Resolver. A non-positive threshold falls back to
// DefaultSimilarityThreshold; a nil logger falls back to slog.Default().
func New(threshold float64, logger *slog.Logger) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{threshold: threshold, logger: logger}
}

// Resolve partitions entities by type and greedily clusters duplicates within
// each partition, merging every cluster into one entity. The result is
// idempotent: resolving an already resolved batch returns it unchanged.
// Cancellation is checked between clusters; on cancellation the partial
// result is discarded and ctx.Err() is returned.
func (r *Resolver) Resolve(ctx context.Context, entities []*types.Entity) ([]*types.Entity, error) {
	if len(entities) == 0 {
		return []*types.Entity{}, nil
	}

	// Partition by type, preserving input order within and across partitions.
	partitions := make(map[types.EntityType][]*types.Entity)
	var order []types.EntityType
	for _, e := range entities {
		if _, seen := partitions[e.Type]; !seen {
			order = append(order, e.Type)
		}
		partitions[e.Type] = append(partitions[e.Type], e)
	}

	resolved := make([]*types.Entity, 0, len(entities))
	for _, entityType := range order {
		partition := partitions[entityType]
		processed := make([]bool, len(partition))

		for i := 0; i < len(partition); i++ {
			if processed[i] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			cluster := []*types.Entity{partition[i]}
			processed[i] = true
			for j := i + 1; j < len(partition); j++ {
				if processed[j] {
					continue
				}
				if r.areDuplicates(partition[i], partition[j]) {
					cluster = append(cluster, partition[j])
					processed[j] = true
				}
			}

			merged, err := r.MergeEntities(cluster)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, merged)
		}
	}

	if len(resolved) < len(entities) {
		r.logger.Info("deduplicated entity batch",
			"in", len(entities), "out", len(resolved))
	}
	return resolved, nil
}

// MergeEntities merges a duplicate cluster into its survivor: the member with
// the highest confidence, ties broken by input order. A single-element list
// is returned unchanged; an empty list is a programmer error.
func (r *Resolver) MergeEntities(entities []*types.Entity) (*types.Entity, error) {
	if len(entities) == 0 {
		return nil, types.ErrEmptyEntityList
	}
	if len(entities) == 1 {
		return entities[0], nil
	}

	survivor := entities[0]
	for _, e := range entities[1:] {
		if e.Confidence > survivor.Confidence {
			survivor = e
		}
	}

	// Recompute through the normalizer so the invariant holds even when the
	// caller built the entity by hand.
	survivor.NormalizedName = normalizer.Normalize(survivor.Name, survivor.Type)
	for _, e := range entities {
		if e != survivor {
			survivor.Merge(e)
		}
	}
	return survivor, nil
}

// areDuplicates applies the duplicate relation for two same-type entities:
// equal normalized names, an alias hit in either direction, or normalized
// name similarity at or above the threshold.
func (r *Resolver) areDuplicates(a, b *types.Entity) bool {
	na := normalizedName(a)
	nb := normalizedName(b)
	if na == "" || nb == "" {
		return false
	}
	if strings.EqualFold(na, nb) {
		return true
	}

	aliasesA := effectiveAliases(a)
	aliasesB := effectiveAliases(b)
	if aliasesA[nb] || aliasesB[na] {
		return true
	}
	// Two surface forms of the same thing often only meet through their
	// aliases ("Microsoft Corporation" and "Microsoft Corp." both reduce
	// to "Microsoft").
	for alias := range aliasesA {
		if aliasesB[alias] {
			return true
		}
	}

	return Similarity(na, nb) >= r.threshold
}

func normalizedName(e *types.Entity) string {
	if e.NormalizedName != "" {
		return e.NormalizedName
	}
	return normalizer.Normalize(e.Name, e.Type)
}

// effectiveAliases returns the normalized union of an entity's stored aliases
// and the aliases its name generates.
func effectiveAliases(e *types.Entity) map[string]bool {
	aliases := make(map[string]bool)
	for _, alias := range e.Aliases {
		if n := normalizer.Normalize(alias, e.Type); n != "" {
			aliases[n] = true
		}
	}
	for _, alias := range normalizer.GenerateAliases(e.Name, e.Type) {
		if n := normalizer.Normalize(alias, e.Type); n != "" {
			aliases[n] = true
		}
	}
	return aliases
}

// Similarity measures how close two strings are on a [0,1] scale using edit
// distance: 1 - distance/max(len(a), len(b)). Equal strings short-circuit to
// 1.0 and either string being empty short-circuits to 0.0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	maxLen := len([]rune(a))
	if lb := len([]rune(b)); lb > maxLen {
		maxLen = lb
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}
