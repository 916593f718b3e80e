// Package export writes finished graphs to columnar parquet files and graph
// statistics to YAML, for downstream analytics tooling.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/panoramicdata/chunkgraph/pkg/graph"
	"github.com/panoramicdata/chunkgraph/pkg/types"
)

// ParquetGraphWriter handles writing entities and relationships to Parquet files
type ParquetGraphWriter struct {
	baseDir string
}

// NewParquetGraphWriter creates a new Parquet writer
// baseDir should be the directory where parquet files will be stored
func NewParquetGraphWriter(baseDir string) (*ParquetGraphWriter, error) {
	dirs := []string{"entities", "relationships", "statistics"}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(baseDir, d), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}

	return &ParquetGraphWriter{baseDir: baseDir}, nil
}

// ParquetEntity represents the schema for an entity in Parquet
type ParquetEntity struct {
	ID             string     `parquet:"id"`
	Name           string     `parquet:"name"`
	NormalizedName string     `parquet:"normalized_name"`
	EntityType     string     `parquet:"entity_type"`
	Confidence     float64    `parquet:"confidence"`
	Frequency      int        `parquet:"frequency"`
	Aliases        string     `parquet:"aliases"`    // JSON string
	Sources        string     `parquet:"sources"`    // JSON string
	Properties     string     `parquet:"properties"` // JSON string
	RelatedIDs     string     `parquet:"related_ids"`
	GraphID        string     `parquet:"graph_id"`
	CreatedAt      *time.Time `parquet:"created_at"`
	UpdatedAt      *time.Time `parquet:"updated_at"`
}

// ParquetRelationship represents the schema for a relationship in Parquet
type ParquetRelationship struct {
	ID            string     `parquet:"id"`
	SourceID      string     `parquet:"source_id"`
	TargetID      string     `parquet:"target_id"`
	RelationType  string     `parquet:"relation_type"`
	Weight        float64    `parquet:"weight"`
	Confidence    float64    `parquet:"confidence"`
	Bidirectional bool       `parquet:"bidirectional"`
	Evidence      string     `parquet:"evidence"`   // JSON string
	Properties    string     `parquet:"properties"` // JSON string
	Extractor     string     `parquet:"extractor"`
	GraphID       string     `parquet:"graph_id"`
	CreatedAt     *time.Time `parquet:"created_at"`
	UpdatedAt     *time.Time `parquet:"updated_at"`
}

// ParquetStatistics represents the schema for a statistics snapshot in Parquet
type ParquetStatistics struct {
	GraphID           string     `parquet:"graph_id"`
	GraphName         string     `parquet:"graph_name"`
	EntityCount       int        `parquet:"entity_count"`
	RelationshipCount int        `parquet:"relationship_count"`
	AverageDegree     float64    `parquet:"average_degree"`
	Density           float64    `parquet:"density"`
	Detail            string     `parquet:"detail"` // JSON string
	ComputedAt        *time.Time `parquet:"computed_at"`
}

// WriteEntities writes a graph's entities to a single Parquet file
func (w *ParquetGraphWriter) WriteEntities(ctx context.Context, g *graph.Graph) error {
	if len(g.Entities) == 0 {
		return nil
	}

	rows := make([]ParquetEntity, 0, len(g.Entities))
	for _, e := range g.Entities {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := newParquetEntity(e, g.ID)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	filename := fmt.Sprintf("entities_%s_%d.parquet", g.ID, time.Now().UnixNano())
	path := filepath.Join(w.baseDir, "entities", filename)

	return parquet.WriteFile(path, rows)
}

// WriteRelationships writes a graph's relationships to a single Parquet file
func (w *ParquetGraphWriter) WriteRelationships(ctx context.Context, g *graph.Graph) error {
	if len(g.Relationships) == 0 {
		return nil
	}

	rows := make([]ParquetRelationship, 0, len(g.Relationships))
	for _, r := range g.Relationships {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := newParquetRelationship(r, g.ID)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	filename := fmt.Sprintf("relationships_%s_%d.parquet", g.ID, time.Now().UnixNano())
	path := filepath.Join(w.baseDir, "relationships", filename)

	return parquet.WriteFile(path, rows)
}

// WriteStatistics computes the graph's statistics and writes a one-row
// snapshot file. The full per-type breakdown travels in the detail column.
func (w *ParquetGraphWriter) WriteStatistics(ctx context.Context, g *graph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stats := g.ComputeStatistics()
	detailJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}

	row := ParquetStatistics{
		GraphID:           g.ID,
		GraphName:         g.Name,
		EntityCount:       stats.EntityCount,
		RelationshipCount: stats.RelationshipCount,
		AverageDegree:     stats.AverageDegree,
		Density:           stats.Density,
		Detail:            string(detailJSON),
	}
	if !stats.ComputedAt.IsZero() {
		row.ComputedAt = &stats.ComputedAt
	}

	filename := fmt.Sprintf("statistics_%s_%d.parquet", g.ID, time.Now().UnixNano())
	path := filepath.Join(w.baseDir, "statistics", filename)

	return parquet.WriteFile(path, []ParquetStatistics{row})
}

// WriteGraph writes entities, relationships and statistics in one call.
func (w *ParquetGraphWriter) WriteGraph(ctx context.Context, g *graph.Graph) error {
	if err := w.WriteEntities(ctx, g); err != nil {
		return err
	}
	if err := w.WriteRelationships(ctx, g); err != nil {
		return err
	}
	return w.WriteStatistics(ctx, g)
}

// Close implements a closer interface, currently no-op as we write file-per-call
func (w *ParquetGraphWriter) Close() error {
	return nil
}

func newParquetEntity(e *types.Entity, graphID string) (ParquetEntity, error) {
	aliasesJSON, err := json.Marshal(e.Aliases)
	if err != nil {
		return ParquetEntity{}, fmt.Errorf("failed to marshal aliases: %w", err)
	}
	sourcesJSON, err := json.Marshal(e.Sources)
	if err != nil {
		return ParquetEntity{}, fmt.Errorf("failed to marshal sources: %w", err)
	}
	propertiesJSON, err := json.Marshal(e.Properties)
	if err != nil {
		return ParquetEntity{}, fmt.Errorf("failed to marshal properties: %w", err)
	}
	relatedJSON, err := json.Marshal(e.RelatedIDs)
	if err != nil {
		return ParquetEntity{}, fmt.Errorf("failed to marshal related ids: %w", err)
	}

	row := ParquetEntity{
		ID:             e.ID,
		Name:           e.Name,
		NormalizedName: e.NormalizedName,
		EntityType:     string(e.Type),
		Confidence:     e.Confidence,
		Frequency:      e.Frequency,
		Aliases:        string(aliasesJSON),
		Sources:        string(sourcesJSON),
		Properties:     string(propertiesJSON),
		RelatedIDs:     string(relatedJSON),
		GraphID:        graphID,
	}
	if !e.CreatedAt.IsZero() {
		row.CreatedAt = &e.CreatedAt
	}
	if !e.UpdatedAt.IsZero() {
		row.UpdatedAt = &e.UpdatedAt
	}
	return row, nil
}

func newParquetRelationship(r *types.Relationship, graphID string) (ParquetRelationship, error) {
	evidenceJSON, err := json.Marshal(r.Evidence)
	if err != nil {
		return ParquetRelationship{}, fmt.Errorf("failed to marshal evidence: %w", err)
	}
	propertiesJSON, err := json.Marshal(r.Properties)
	if err != nil {
		return ParquetRelationship{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	row := ParquetRelationship{
		ID:            r.ID,
		SourceID:      r.SourceID,
		TargetID:      r.TargetID,
		RelationType:  string(r.Type),
		Weight:        r.Weight,
		Confidence:    r.Confidence,
		Bidirectional: r.Bidirectional,
		Evidence:      string(evidenceJSON),
		Properties:    string(propertiesJSON),
		Extractor:     r.Metadata.Extractor,
		GraphID:       graphID,
	}
	if !r.CreatedAt.IsZero() {
		row.CreatedAt = &r.CreatedAt
	}
	if !r.UpdatedAt.IsZero() {
		row.UpdatedAt = &r.UpdatedAt
	}
	return row, nil
}
