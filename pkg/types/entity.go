package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entity is a deduplicated representation of a real-world thing mentioned
// across chunks. NormalizedName must always be produced by the normalizer
// package; merge never touches it because the survivor keeps its own name.
type Entity struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Type           EntityType             `json:"type"`
	NormalizedName string                 `json:"normalized_name"`
	Confidence     float64                `json:"confidence"`
	Frequency      int                    `json:"frequency"`
	Aliases        []string               `json:"aliases,omitempty"`
	Sources        []EntitySource         `json:"sources,omitempty"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	RelatedIDs     []string               `json:"related_ids,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// NewEntity creates an Entity with a generated identifier. The caller supplies
// the normalized name so that it always comes from the normalizer package.
func NewEntity(name string, entityType EntityType, normalized string) *Entity {
	now := time.Now().UTC()
	return &Entity{
		ID:             uuid.NewString(),
		Name:           name,
		Type:           entityType,
		NormalizedName: normalized,
		Confidence:     1.0,
		Frequency:      1,
		Properties:     make(map[string]interface{}),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks if the Entity has all required fields set.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Name == "" {
		return ErrEmptyName
	}
	return nil
}

// HasAlias reports whether alias is already present, case-insensitively.
func (e *Entity) HasAlias(alias string) bool {
	for _, a := range e.Aliases {
		if strings.EqualFold(a, alias) {
			return true
		}
	}
	return false
}

// AddAlias appends an alias unless it duplicates an existing alias or the
// display name itself. Comparison is case-insensitive; the alias set only
// ever grows.
func (e *Entity) AddAlias(alias string) {
	alias = strings.TrimSpace(alias)
	if alias == "" || strings.EqualFold(alias, e.Name) || e.HasAlias(alias) {
		return
	}
	e.Aliases = append(e.Aliases, alias)
}

// HasSource reports whether an observation at (chunk, position) is recorded.
func (e *Entity) HasSource(chunkID string, position int) bool {
	for _, s := range e.Sources {
		if s.ChunkID == chunkID && s.Position == position {
			return true
		}
	}
	return false
}

// AddSource appends an observation, keeping the list ordered and append-only.
// Observations are deduplicated by (chunk, position).
func (e *Entity) AddSource(src EntitySource) {
	if e.HasSource(src.ChunkID, src.Position) {
		return
	}
	if src.Timestamp.IsZero() {
		src.Timestamp = time.Now().UTC()
	}
	e.Sources = append(e.Sources, src)
}

// SetProperty records a free-form property. The first writer wins; an
// existing value is never overwritten.
func (e *Entity) SetProperty(key string, value interface{}) {
	if e.Properties == nil {
		e.Properties = make(map[string]interface{})
	}
	if _, exists := e.Properties[key]; exists {
		return
	}
	e.Properties[key] = value
}

// AddRelatedID records the identifier of a related entity, deduplicated.
func (e *Entity) AddRelatedID(id string) {
	if id == "" || id == e.ID {
		return
	}
	for _, existing := range e.RelatedIDs {
		if existing == id {
			return
		}
	}
	e.RelatedIDs = append(e.RelatedIDs, id)
}

// Merge folds other into e. Confidence takes the max, frequency is additive,
// the alias set absorbs other's name and aliases, sources are appended with
// (chunk, position) dedup, and properties keep the first written value. The
// aggregate observable state is the same whichever member of a duplicate
// cluster survives.
func (e *Entity) Merge(other *Entity) {
	if other == nil || other == e {
		return
	}
	if other.Confidence > e.Confidence {
		e.Confidence = other.Confidence
	}
	e.Frequency += other.Frequency

	e.AddAlias(other.Name)
	for _, alias := range other.Aliases {
		e.AddAlias(alias)
	}
	for _, src := range other.Sources {
		e.AddSource(src)
	}
	for key, value := range other.Properties {
		e.SetProperty(key, value)
	}
	for _, id := range other.RelatedIDs {
		e.AddRelatedID(id)
	}
	if other.CreatedAt.Before(e.CreatedAt) {
		e.CreatedAt = other.CreatedAt
	}
	e.UpdatedAt = time.Now().UTC()
}
