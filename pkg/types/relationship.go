package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Property keys used by the co-occurrence extractor.
const (
	PropertyMinDistance = "min_distance"
)

// Relationship is a typed, weighted edge between two entity identifiers.
// Weight is accumulated strength, not a probability; it may exceed 1.0
// before a batch is normalized by the consolidator.
type Relationship struct {
	ID            string                 `json:"id"`
	Type          RelationType           `json:"type"`
	SourceID      string                 `json:"source_id"`
	TargetID      string                 `json:"target_id"`
	Weight        float64                `json:"weight"`
	Confidence    float64                `json:"confidence"`
	Bidirectional bool                   `json:"bidirectional"`
	Evidence      []Evidence             `json:"evidence,omitempty"`
	Properties    map[string]interface{} `json:"properties,omitempty"`
	Metadata      RelationshipMetadata   `json:"metadata"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// NewRelationship creates a Relationship with a generated identifier.
func NewRelationship(sourceID, targetID string, relationType RelationType) *Relationship {
	now := time.Now().UTC()
	return &Relationship{
		ID:         uuid.NewString(),
		Type:       relationType,
		SourceID:   sourceID,
		TargetID:   targetID,
		Properties: make(map[string]interface{}),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks if the Relationship has all required fields set.
func (r *Relationship) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.SourceID == "" || r.TargetID == "" {
		return ErrInvalidEndpoints
	}
	return nil
}

// PairKey returns a key identifying the unordered (source, target, type)
// triple. Relationships with the same key are consolidation candidates.
func (r *Relationship) PairKey() string {
	a, b := r.SourceID, r.TargetID
	if a > b {
		a, b = b, a
	}
	return strings.Join([]string{a, b, string(r.Type)}, "|")
}

// HasEvidence reports whether an observation for (chunk, context) exists.
func (r *Relationship) HasEvidence(chunkID, context string) bool {
	for _, ev := range r.Evidence {
		if ev.ChunkID == chunkID && ev.Context == context {
			return true
		}
	}
	return false
}

// AddEvidence appends an observation, deduplicated by (chunk, context).
// The evidence list is append-only.
func (r *Relationship) AddEvidence(ev Evidence) {
	if r.HasEvidence(ev.ChunkID, ev.Context) {
		return
	}
	r.Evidence = append(r.Evidence, ev)
}

// SetProperty records a property. The first writer wins.
func (r *Relationship) SetProperty(key string, value interface{}) {
	if r.Properties == nil {
		r.Properties = make(map[string]interface{})
	}
	if _, exists := r.Properties[key]; exists {
		return
	}
	r.Properties[key] = value
}

// MinDistance returns the minimum observed co-occurrence distance, or -1 when
// the extractor never recorded one.
func (r *Relationship) MinDistance() int {
	v, ok := r.Properties[PropertyMinDistance]
	if !ok {
		return -1
	}
	switch d := v.(type) {
	case int:
		return d
	case float64:
		return int(d)
	default:
		return -1
	}
}

// UpdateMinDistance lowers the recorded minimum distance when the new
// observation is closer.
func (r *Relationship) UpdateMinDistance(distance int) {
	if distance < 0 {
		return
	}
	if current := r.MinDistance(); current < 0 || distance < current {
		if r.Properties == nil {
			r.Properties = make(map[string]interface{})
		}
		r.Properties[PropertyMinDistance] = distance
	}
}

// Merge folds other into r: weights sum, confidence takes the max, evidence
// lists concatenate with (chunk, context) dedup, and the minimum distance
// property keeps the closest observation. Both relationships must refer to
// the same unordered pair and type; the consolidator guarantees that.
func (r *Relationship) Merge(other *Relationship) {
	if other == nil || other == r {
		return
	}
	r.Weight += other.Weight
	if other.Confidence > r.Confidence {
		r.Confidence = other.Confidence
	}
	if other.Bidirectional {
		r.Bidirectional = true
	}
	for _, ev := range other.Evidence {
		r.AddEvidence(ev)
	}
	if d := other.MinDistance(); d >= 0 {
		r.UpdateMinDistance(d)
	}
	for key, value := range other.Properties {
		if key == PropertyMinDistance {
			continue
		}
		r.SetProperty(key, value)
	}
	if other.Metadata.ManuallyVerified {
		r.Metadata.ManuallyVerified = true
	}
	if other.CreatedAt.Before(r.CreatedAt) {
		r.CreatedAt = other.CreatedAt
	}
	r.UpdatedAt = time.Now().UTC()
}
