// Package graph owns the resolved entities and consolidated relationships of
// one knowledge graph, along with derived lookup indexes and aggregate
// statistics.
//
// Indexes are memoized views over the entity and relationship slices: every
// mutation clears them and the next query rebuilds them, so callers never
// observe stale results and never have to call BuildIndexes themselves.
// A Graph is not safe for concurrent mutation; callers needing concurrent
// writers must serialize externally or use one Graph per worker.
package graph

import (
	"strings"

	"github.com/google/uuid"

	"github.com/panoramicdata/chunkgraph/pkg/normalizer"
	"github.com/panoramicdata/chunkgraph/pkg/types"
)

// Graph is a container and query surface for entities and relationships.
// Collections are owned by the graph and never shared across instances.
type Graph struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Entities      []*types.Entity       `json:"entities"`
	Relationships []*types.Relationship `json:"relationships"`

	// Derived indexes, nil when stale. Entities are referenced by id only,
	// so there are no pointer cycles to manage here.
	byID        map[string]*types.Entity
	byName      map[string][]*types.Entity
	outgoing    map[string][]*types.Relationship
	entityTypes map[types.EntityType]bool
}

// New creates an empty named Graph with a generated identifier.
func New(name string) *Graph {
	return &Graph{
		ID:   uuid.NewString(),
		Name: name,
	}
}

// AddEntity appends an entity and invalidates all indexes. The append is a
// single atomic mutation; a failed operation elsewhere never leaves the
// graph partially mutated.
func (g *Graph) AddEntity(e *types.Entity) {
	if e == nil {
		return
	}
	g.Entities = append(g.Entities, e)
	g.invalidate()
}

// AddEntities bulk-appends entities.
func (g *Graph) AddEntities(entities []*types.Entity) {
	for _, e := range entities {
		if e != nil {
			g.Entities = append(g.Entities, e)
		}
	}
	g.invalidate()
}

// AddRelationship appends a relationship and invalidates all indexes.
func (g *Graph) AddRelationship(r *types.Relationship) {
	if r == nil {
		return
	}
	g.Relationships = append(g.Relationships, r)
	g.invalidate()
}

// AddRelationships bulk-appends relationships.
func (g *Graph) AddRelationships(relationships []*types.Relationship) {
	for _, r := range relationships {
		if r != nil {
			g.Relationships = append(g.Relationships, r)
		}
	}
	g.invalidate()
}

func (g *Graph) invalidate() {
	g.byID = nil
	g.byName = nil
	g.outgoing = nil
	g.entityTypes = nil
}

// BuildIndexes rebuilds the three lookup indexes: id to entity, normalized
// name to entities, and source entity id to outgoing relationships. Queries
// call this lazily; it only needs to be called directly to front-load the
// cost.
func (g *Graph) BuildIndexes() {
	g.byID = make(map[string]*types.Entity, len(g.Entities))
	g.byName = make(map[string][]*types.Entity, len(g.Entities))
	g.entityTypes = make(map[types.EntityType]bool)
	for _, e := range g.Entities {
		g.byID[e.ID] = e
		key := strings.ToLower(e.NormalizedName)
		g.byName[key] = append(g.byName[key], e)
		g.entityTypes[e.Type] = true
	}

	g.outgoing = make(map[string][]*types.Relationship, len(g.Relationships))
	for _, r := range g.Relationships {
		g.outgoing[r.SourceID] = append(g.outgoing[r.SourceID], r)
	}
}

func (g *Graph) ensureIndexes() {
	if g.byID == nil {
		g.BuildIndexes()
	}
}

// GetEntity looks an entity up by identifier.
func (g *Graph) GetEntity(id string) (*types.Entity, bool) {
	g.ensureIndexes()
	e, ok := g.byID[id]
	return e, ok
}

// GetEntitiesByName returns all entities whose normalized name matches the
// query. The query is normalized the same way entity names were: generically
// first, then once per entity type present in the graph, so surface forms
// like "  Microsoft " or "https://example.com" hit the bucket keyed by their
// canonical name.
func (g *Graph) GetEntitiesByName(name string) []*types.Entity {
	g.ensureIndexes()

	var matches []*types.Entity
	seen := make(map[string]bool)
	lookup := func(key string) {
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		matches = append(matches, g.byName[key]...)
	}

	lookup(normalizer.NormalizeGeneric(name))
	for entityType := range g.entityTypes {
		lookup(normalizer.Normalize(name, entityType))
	}
	return matches
}

// GetEntitiesByType returns all entities of the given type, scanning the
// collection linearly.
func (g *Graph) GetEntitiesByType(entityType types.EntityType) []*types.Entity {
	g.ensureIndexes()
	var matches []*types.Entity
	for _, e := range g.Entities {
		if e.Type == entityType {
			matches = append(matches, e)
		}
	}
	return matches
}

// GetRelationships returns relationships touching the entity: outgoing edges
// come from the index, incoming edges from a linear scan when requested.
func (g *Graph) GetRelationships(entityID string, includeIncoming bool) []*types.Relationship {
	g.ensureIndexes()
	matches := append([]*types.Relationship(nil), g.outgoing[entityID]...)
	if includeIncoming {
		for _, r := range g.Relationships {
			if r.TargetID == entityID && r.SourceID != entityID {
				matches = append(matches, r)
			}
		}
	}
	return matches
}

// GetRelationshipsByType returns all relationships of the given type.
func (g *Graph) GetRelationshipsByType(relationType types.RelationType) []*types.Relationship {
	g.ensureIndexes()
	var matches []*types.Relationship
	for _, r := range g.Relationships {
		if r.Type == relationType {
			matches = append(matches, r)
		}
	}
	return matches
}
