package graph

import "fmt"

// ViolationKind classifies a structural problem found by Validate.
type ViolationKind string

const (
	ViolationDuplicateEntityID       ViolationKind = "duplicate_entity_id"
	ViolationDuplicateRelationshipID ViolationKind = "duplicate_relationship_id"
	ViolationMissingEndpoint         ViolationKind = "missing_endpoint"
)

// Violation describes one structural problem in the graph.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	ID      string        `json:"id"`
	Message string        `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Kind, v.Message)
}

// Validate checks for duplicate entity ids, duplicate relationship ids, and
// relationships whose endpoints do not exist. It collects every violation
// instead of failing on the first; the caller decides how severe the result
// is. A well-formed graph returns an empty list.
func (g *Graph) Validate() []Violation {
	var violations []Violation

	entityIDs := make(map[string]bool, len(g.Entities))
	for _, e := range g.Entities {
		if entityIDs[e.ID] {
			violations = append(violations, Violation{
				Kind:    ViolationDuplicateEntityID,
				ID:      e.ID,
				Message: fmt.Sprintf("entity id %s appears more than once", e.ID),
			})
			continue
		}
		entityIDs[e.ID] = true
	}

	relationshipIDs := make(map[string]bool, len(g.Relationships))
	for _, r := range g.Relationships {
		if relationshipIDs[r.ID] {
			violations = append(violations, Violation{
				Kind:    ViolationDuplicateRelationshipID,
				ID:      r.ID,
				Message: fmt.Sprintf("relationship id %s appears more than once", r.ID),
			})
		}
		relationshipIDs[r.ID] = true

		if !entityIDs[r.SourceID] {
			violations = append(violations, Violation{
				Kind:    ViolationMissingEndpoint,
				ID:      r.ID,
				Message: fmt.Sprintf("relationship %s references missing source entity %s", r.ID, r.SourceID),
			})
		}
		if !entityIDs[r.TargetID] {
			violations = append(violations, Violation{
				Kind:    ViolationMissingEndpoint,
				ID:      r.ID,
				Message: fmt.Sprintf("relationship %s references missing target entity %s", r.ID, r.TargetID),
			})
		}
	}

	return violations
}
