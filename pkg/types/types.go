package types

import (
	"errors"
	"strings"
	"time"
)

// Validation errors
var (
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrEmptyEntityList  = errors.New("entity list cannot be empty")
	ErrEmptyChunkID     = errors.New("chunk id cannot be empty")
	ErrInvalidEndpoints = errors.New("relationship source and target must be set")
)

// EntityType classifies what kind of real-world thing an entity refers to.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeLocation     EntityType = "location"
	EntityTypeProduct      EntityType = "product"
	EntityTypeDate         EntityType = "date"
	EntityTypeMoney        EntityType = "money"
	EntityTypePercent      EntityType = "percent"
	EntityTypeURL          EntityType = "url"
	EntityTypeEmail        EntityType = "email"
	EntityTypePhone        EntityType = "phone"
	EntityTypeKeyword      EntityType = "keyword"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeEvent        EntityType = "event"
	EntityTypeOther        EntityType = "other"
)

// ParseEntityType maps a free-form type hint from the enrichment layer onto
// the closed enum. Unrecognized hints fall back to EntityTypeOther.
func ParseEntityType(hint string) EntityType {
	t := EntityType(strings.ToLower(strings.TrimSpace(hint)))
	switch t {
	case EntityTypePerson, EntityTypeOrganization, EntityTypeLocation,
		EntityTypeProduct, EntityTypeDate, EntityTypeMoney, EntityTypePercent,
		EntityTypeURL, EntityTypeEmail, EntityTypePhone, EntityTypeKeyword,
		EntityTypeConcept, EntityTypeEvent:
		return t
	default:
		return EntityTypeOther
	}
}

// RelationType classifies an edge between two entities.
type RelationType string

const (
	// Co-occurrence extraction only ever produces these three.
	RelationMentions     RelationType = "mentions"
	RelationCooccursWith RelationType = "cooccurs_with"
	RelationRelatedTo    RelationType = "related_to"

	// Reserved for richer typed-relationship extractors. The consolidator
	// handles them like any other type key, but nothing in this module
	// produces them yet.
	RelationWorksAt   RelationType = "works_at"
	RelationLocatedIn RelationType = "located_in"
	RelationFounded   RelationType = "founded"
	RelationPartOf    RelationType = "part_of"
	RelationCreatedBy RelationType = "created_by"
)

// Chunk is the unit of source text consumed from the parsing front end.
// Content is treated as immutable; positions in entity sources index into it.
type Chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Validate checks if the Chunk has all required fields set.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrEmptyChunkID
	}
	return nil
}

// CandidateEntity is a raw (name, type-hint, confidence) triple produced per
// chunk by the LLM enrichment layer, before conversion into an Entity.
type CandidateEntity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// EntitySource records one observation of an entity inside a chunk.
type EntitySource struct {
	ChunkID   string    `json:"chunk_id"`
	Position  int       `json:"position"`
	Length    int       `json:"length"`
	Context   string    `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Midpoint returns the character offset at the middle of the observed span,
// used for co-occurrence distance calculations.
func (s EntitySource) Midpoint() int {
	return s.Position + s.Length/2
}

// Evidence records one observation supporting a relationship.
type Evidence struct {
	ChunkID    string  `json:"chunk_id"`
	Context    string  `json:"context"`
	Confidence float64 `json:"confidence"`
	Pattern    string  `json:"pattern,omitempty"`
	Distance   int     `json:"distance,omitempty"`
}

// RelationshipMetadata tracks provenance for an extracted relationship.
type RelationshipMetadata struct {
	Extractor        string    `json:"extractor"`
	ExtractorVersion string    `json:"extractor_version"`
	ExtractedAt      time.Time `json:"extracted_at"`
	ManuallyVerified bool      `json:"manually_verified,omitempty"`
}
