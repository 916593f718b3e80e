package extractor

import (
	"context"
	"log/slog"

	"github.com/panoramicdata/chunkgraph/pkg/types"
)

// Consolidator merges repeated relationship observations for the same
// unordered (source, target, type) triple into a single edge, then rescales
// the batch so the strongest edge has weight 1.0. Rescaling keeps weight
// thresholds independent of corpus size.
type Consolidator struct {
	logger *slog.Logger
}

// NewConsolidator creates a Consolidator. A nil logger falls back to
// slog.Default().
func NewConsolidator(logger *slog.Logger) *Consolidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consolidator{logger: logger}
}

// Consolidate merges same-pair-same-type candidates: weights sum, confidence
// takes the max observed, and evidence lists concatenate with (chunk,
// context) duplicates removed. After merging, all weights are rescaled so
// the maximum is 1.0. The merge is commutative, so the result is
// deterministic up to output order, which follows first appearance.
// Cancellation is checked between candidates; on cancellation the partial
// result is discarded and ctx.Err() is returned.
func (c *Consolidator) Consolidate(ctx context.Context, relationships []*types.Relationship) ([]*types.Relationship, error) {
	if len(relationships) == 0 {
		return []*types.Relationship{}, nil
	}

	merged := make(map[string]*types.Relationship, len(relationships))
	var order []string
	for _, rel := range relationships {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := rel.PairKey()
		existing, ok := merged[key]
		if !ok {
			merged[key] = rel
			order = append(order, key)
			continue
		}
		existing.Merge(rel)
	}

	consolidated := make([]*types.Relationship, 0, len(order))
	maxWeight := 0.0
	for _, key := range order {
		rel := merged[key]
		consolidated = append(consolidated, rel)
		if rel.Weight > maxWeight {
			maxWeight = rel.Weight
		}
	}

	if maxWeight > 0 {
		for _, rel := range consolidated {
			rel.Weight /= maxWeight
		}
	}

	if len(consolidated) < len(relationships) {
		c.logger.Info("consolidated relationship batch",
			"in", len(relationships), "out", len(consolidated))
	}
	return consolidated, nil
}
