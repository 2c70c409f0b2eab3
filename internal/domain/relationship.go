package domain

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType is the semantic of a directed edge between two CIs.
type RelationshipType string

const (
	// Dependency relationships
	RelationshipDependsOn  RelationshipType = "DEPENDS_ON"
	RelationshipRequiredBy RelationshipType = "REQUIRED_BY"

	// Containment relationships
	RelationshipContains    RelationshipType = "CONTAINS"
	RelationshipContainedBy RelationshipType = "CONTAINED_BY"
	RelationshipRunsOn      RelationshipType = "RUNS_ON"
	RelationshipHosts       RelationshipType = "HOSTS"

	// Network relationships
	RelationshipConnectsTo    RelationshipType = "CONNECTS_TO"
	RelationshipConnectedFrom RelationshipType = "CONNECTED_FROM"

	// Logical relationships
	RelationshipUses     RelationshipType = "USES"
	RelationshipUsedBy   RelationshipType = "USED_BY"
	RelationshipProvides RelationshipType = "PROVIDES"
	RelationshipConsumes RelationshipType = "CONSUMES"

	// Component relationships
	RelationshipMemberOf  RelationshipType = "MEMBER_OF"
	RelationshipHasMember RelationshipType = "HAS_MEMBER"

	// Backup/DR relationships
	RelationshipBackupOf     RelationshipType = "BACKUP_OF"
	RelationshipReplicatedTo RelationshipType = "REPLICATED_TO"

	// Documentation
	RelationshipDocumentedBy RelationshipType = "DOCUMENTED_BY"
)

var relationshipTypes = map[RelationshipType]struct{}{
	RelationshipDependsOn:     {},
	RelationshipRequiredBy:    {},
	RelationshipContains:      {},
	RelationshipContainedBy:   {},
	RelationshipRunsOn:        {},
	RelationshipHosts:         {},
	RelationshipConnectsTo:    {},
	RelationshipConnectedFrom: {},
	RelationshipUses:          {},
	RelationshipUsedBy:        {},
	RelationshipProvides:      {},
	RelationshipConsumes:      {},
	RelationshipMemberOf:      {},
	RelationshipHasMember:     {},
	RelationshipBackupOf:      {},
	RelationshipReplicatedTo:  {},
	RelationshipDocumentedBy:  {},
}

// Valid reports whether the relationship type is a known enumeration value.
func (t RelationshipType) Valid() bool {
	_, ok := relationshipTypes[t]
	return ok
}

// DefaultTraversalTypes is the relationship-type allow-list applied when
// an impact or dependency traversal is requested without one.
func DefaultTraversalTypes() []RelationshipType {
	return []RelationshipType{
		RelationshipDependsOn,
		RelationshipRequiredBy,
		RelationshipRunsOn,
		RelationshipUses,
	}
}

// Relationship is a directed, typed edge between two configuration items.
// At most one active relationship may exist per (source, target, type).
type Relationship struct {
	ID          uuid.UUID        `json:"id"`
	SourceID    uuid.UUID        `json:"source_id"`
	TargetID    uuid.UUID        `json:"target_id"`
	Type        RelationshipType `json:"relationship_type"`
	Description string           `json:"description,omitempty"`
	IsActive    bool             `json:"is_active"`
	CreatedAt   time.Time        `json:"created_at"`
	CreatedBy   string           `json:"created_by"`
}

// NewRelationship builds an active edge from source to target.
func NewRelationship(sourceID, targetID uuid.UUID, relType RelationshipType, description, actor string) Relationship {
	return Relationship{
		ID:          uuid.New(),
		SourceID:    sourceID,
		TargetID:    targetID,
		Type:        relType,
		Description: description,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   actor,
	}
}

// Other returns the endpoint of the edge that is not the given CI.
func (r Relationship) Other(ciID uuid.UUID) uuid.UUID {
	if r.SourceID == ciID {
		return r.TargetID
	}
	return r.SourceID
}
