package graph

import (
	"time"

	"github.com/panoramicdata/chunkgraph/pkg/types"
)

// Statistics is a point-in-time aggregate snapshot of a Graph. It is not
// refreshed automatically; call ComputeStatistics again after mutating.
type Statistics struct {
	GraphID           string `json:"graph_id" yaml:"graph_id"`
	EntityCount       int    `json:"entity_count" yaml:"entity_count"`
	RelationshipCount int    `json:"relationship_count" yaml:"relationship_count"`

	EntityTypeDistribution   map[types.EntityType]int   `json:"entity_type_distribution" yaml:"entity_type_distribution"`
	RelationTypeDistribution map[types.RelationType]int `json:"relation_type_distribution" yaml:"relation_type_distribution"`

	AverageEntityConfidence       float64 `json:"average_entity_confidence" yaml:"average_entity_confidence"`
	AverageRelationshipConfidence float64 `json:"average_relationship_confidence" yaml:"average_relationship_confidence"`
	AverageFrequency              float64 `json:"average_frequency" yaml:"average_frequency"`

	TotalSources  int `json:"total_sources" yaml:"total_sources"`
	TotalEvidence int `json:"total_evidence" yaml:"total_evidence"`

	// AverageDegree is relationships per entity; Density is the ratio of
	// present edges to possible directed edges, zero for graphs with
	// fewer than two entities.
	AverageDegree float64 `json:"average_degree" yaml:"average_degree"`
	Density       float64 `json:"density" yaml:"density"`

	ComputedAt time.Time `json:"computed_at" yaml:"computed_at"`
}

// ComputeStatistics computes a snapshot over the current collections.
func (g *Graph) ComputeStatistics() *Statistics {
	stats := &Statistics{
		GraphID:                  g.ID,
		EntityCount:              len(g.Entities),
		RelationshipCount:        len(g.Relationships),
		EntityTypeDistribution:   make(map[types.EntityType]int),
		RelationTypeDistribution: make(map[types.RelationType]int),
		ComputedAt:               time.Now().UTC(),
	}

	totalConfidence := 0.0
	totalFrequency := 0
	for _, e := range g.Entities {
		stats.EntityTypeDistribution[e.Type]++
		totalConfidence += e.Confidence
		totalFrequency += e.Frequency
		stats.TotalSources += len(e.Sources)
	}
	if stats.EntityCount > 0 {
		stats.AverageEntityConfidence = totalConfidence / float64(stats.EntityCount)
		stats.AverageFrequency = float64(totalFrequency) / float64(stats.EntityCount)
	}

	totalRelConfidence := 0.0
	for _, r := range g.Relationships {
		stats.RelationTypeDistribution[r.Type]++
		totalRelConfidence += r.Confidence
		stats.TotalEvidence += len(r.Evidence)
	}
	if stats.RelationshipCount > 0 {
		stats.AverageRelationshipConfidence = totalRelConfidence / float64(stats.RelationshipCount)
	}

	if stats.EntityCount > 0 {
		stats.AverageDegree = float64(stats.RelationshipCount) / float64(stats.EntityCount)
	}
	if stats.EntityCount >= 2 {
		n := float64(stats.EntityCount)
		stats.Density = float64(stats.RelationshipCount) / (n * (n - 1))
	}

	return stats
}
